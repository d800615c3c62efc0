// Package polyline decodes and encodes Google's polyline algorithm format into
// orb line strings. The algorithm is documented at:
// https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// DefaultPrecision is the number of decimal places used by Google and
// OpenRouteService encoded geometries.
const DefaultPrecision = 5

// ErrMalformed is returned when the encoded string ends in the middle of a value
// or pairs are incomplete.
var ErrMalformed = errors.New("malformed polyline")

// Decode decodes a precision-5 polyline into a line string of lon/lat points.
func Decode(encoded string) (orb.LineString, error) {
	return DecodeWithPrecision(encoded, DefaultPrecision)
}

// DecodeWithPrecision decodes a polyline encoded with the given precision.
func DecodeWithPrecision(encoded string, precision int) (orb.LineString, error) {
	if encoded == "" {
		return nil, nil
	}

	factor := math.Pow10(precision)
	ls := make(orb.LineString, 0, len(encoded)/4)

	var lat, lon int
	for index := 0; index < len(encoded); {
		latDelta, next, ok := decodeValue(encoded, index)
		if !ok {
			return nil, ErrMalformed
		}
		lonDelta, next, ok := decodeValue(encoded, next)
		if !ok {
			return nil, ErrMalformed
		}
		index = next

		lat += latDelta
		lon += lonDelta
		ls = append(ls, orb.Point{float64(lon) / factor, float64(lat) / factor})
	}

	return ls, nil
}

// decodeValue reads one zig-zag varint starting at index. ok is false when the
// input ends before the value terminates.
func decodeValue(encoded string, index int) (value, next int, ok bool) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), index, true
			}
			return result >> 1, index, true
		}
	}

	return 0, index, false
}

// Encode encodes a line string at precision 5.
func Encode(ls orb.LineString) string {
	return EncodeWithPrecision(ls, DefaultPrecision)
}

// EncodeWithPrecision encodes a line string using the given precision.
func EncodeWithPrecision(ls orb.LineString, precision int) string {
	if len(ls) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	encoded := make([]byte, 0, len(ls)*8)

	var prevLat, prevLon int
	for _, p := range ls {
		lat := int(math.Round(p.Lat() * factor))
		lon := int(math.Round(p.Lon() * factor))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)

		prevLat, prevLon = lat, lon
	}

	return string(encoded)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}
