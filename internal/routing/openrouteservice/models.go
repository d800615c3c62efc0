package openrouteservice

import "github.com/paulmach/orb"

// directionsBody is the POST body of /v2/directions/{profile}. Coordinates
// are orb points, which encode as GeoJSON [lon, lat] pairs.
type directionsBody struct {
	Coordinates  []orb.Point   `json:"coordinates"`
	Preference   string        `json:"preference,omitempty"`
	Alternatives *alternatives `json:"alternative_routes,omitempty"`
	Instructions bool          `json:"instructions"`
	Geometry     bool          `json:"geometry"`
	Units        string        `json:"units"`
	Language     string        `json:"language"`
}

type alternatives struct {
	TargetCount  int     `json:"target_count"`
	ShareFactor  float64 `json:"share_factor"`
	WeightFactor float64 `json:"weight_factor"`
}

type directionsResult struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"` // m
			Duration float64 `json:"duration"` // s
		} `json:"summary"`
		Segments []struct {
			Steps []step `json:"steps"`
		} `json:"segments"`
		BBox     []float64 `json:"bbox"`
		Geometry string    `json:"geometry"`
	} `json:"routes"`
}

type step struct {
	Distance float64 `json:"distance"`
	Name     string  `json:"name"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Engine error codes that mean the points cannot be connected.
var unroutableCodes = map[int]bool{
	2004: true, // distance limit exceeded
	2009: true, // route not found
	2010: true, // point not routable
}
