// Package airquality provides point exposure lookups, the exposure index
// computation and the route-level exposure estimator.
package airquality

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Provider errors.
var (
	ErrNoMeasurements      = errors.New("no measurements available")
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Error wraps a provider failure with context.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Index is the normalized exposure severity, 0 (clean) to 500 (hazardous).
type Index int

// MaxIndex is the upper bound of the exposure scale.
const MaxIndex Index = 500

// IndexFromFloat rounds v half away from zero and clamps it to [0, MaxIndex].
func IndexFromFloat(v float64) Index {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	r := math.Round(v)
	if r >= float64(MaxIndex) {
		return MaxIndex
	}
	return Index(r)
}

// Pollutant identifies a measured component.
type Pollutant string

const (
	PollutantCO   Pollutant = "CO"
	PollutantNO   Pollutant = "NO"
	PollutantNO2  Pollutant = "NO2"
	PollutantO3   Pollutant = "O3"
	PollutantSO2  Pollutant = "SO2"
	PollutantPM25 Pollutant = "PM2_5"
	PollutantPM10 Pollutant = "PM10"
	PollutantNH3  Pollutant = "NH3"
)

// Components holds pollutant concentrations in μg/m³.
type Components struct {
	CO   float64
	NO   float64
	NO2  float64
	O3   float64
	SO2  float64
	PM25 float64
	PM10 float64
	NH3  float64
}

// Dominant returns the pollutant with the highest raw concentration.
// Ties keep the earlier pollutant in declaration order.
func (c Components) Dominant() Pollutant {
	values := []struct {
		p Pollutant
		v float64
	}{
		{PollutantCO, c.CO},
		{PollutantNO, c.NO},
		{PollutantNO2, c.NO2},
		{PollutantO3, c.O3},
		{PollutantSO2, c.SO2},
		{PollutantPM25, c.PM25},
		{PollutantPM10, c.PM10},
		{PollutantNH3, c.NH3},
	}

	best := values[0]
	for _, cand := range values[1:] {
		if cand.v > best.v {
			best = cand
		}
	}
	return best.p
}

// Reading is the air quality at a single location and time.
type Reading struct {
	Lat float64
	Lon float64

	// Category is the provider's coarse 1 (good) to 5 (very poor) scale, 0 if absent.
	Category int

	// Components is nil when the provider reported no concentrations.
	Components *Components

	// Index is derived from Components, or from Category when components are absent.
	Index Index

	MeasuredAt time.Time
	FetchedAt  time.Time
}

// Band is a named exposure range with its display colour.
type Band struct {
	Name  string
	Color string
}

// BandFor classifies an exposure index.
func BandFor(i Index) Band {
	switch {
	case i <= 50:
		return Band{Name: "Good", Color: "#22c55e"}
	case i <= 100:
		return Band{Name: "Moderate", Color: "#eab308"}
	case i <= 200:
		return Band{Name: "Poor", Color: "#f97316"}
	case i <= 300:
		return Band{Name: "Unhealthy", Color: "#ef4444"}
	case i <= 400:
		return Band{Name: "Severe", Color: "#a855f7"}
	default:
		return Band{Name: "Hazardous", Color: "#7f1d1d"}
	}
}
