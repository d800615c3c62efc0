package models

import "github.com/paulmach/orb/geojson"

// Place is a route endpoint given either by name or by coordinates.
type Place struct {
	Name  string `json:"name,omitempty" validate:"required_without=Point,omitempty,max=200"`
	Point *Point `json:"point,omitempty" validate:"required_without=Name,omitempty"`
}

// RankRequest is the request body for ranking routes.
type RankRequest struct {
	Origin      Place  `json:"origin"`
	Destination Place  `json:"destination"`
	Profile     string `json:"profile,omitempty" validate:"omitempty,oneof=driving-car driving-hgv cycling-regular foot-walking"`

	// UserID records the trip in the user's history when set.
	UserID string `json:"userId,omitempty" validate:"omitempty,max=128"`
}

// ResolvedPlace is an endpoint after name resolution.
type ResolvedPlace struct {
	Name  string `json:"name,omitempty"`
	Point Point  `json:"point"`
}

// RankResponse is the ranked set of route candidates.
type RankResponse struct {
	GeneratedAt          Timestamp        `json:"generatedAt"`
	Origin               ResolvedPlace    `json:"origin"`
	Destination          ResolvedPlace    `json:"destination"`
	Profile              string           `json:"profile"`
	Candidates           []RouteCandidate `json:"candidates"`
	RecommendedIndex     int              `json:"recommendedIndex"`
	RecommendationSource string           `json:"recommendationSource"`
	HistoryID            string           `json:"historyId,omitempty"`
}

// RouteCandidate is one ranked route.
type RouteCandidate struct {
	Index               int               `json:"index"`
	Label               string            `json:"label"`
	Strategy            string            `json:"strategy"`
	Summary             string            `json:"summary,omitempty"`
	DistanceKm          float64           `json:"distanceKm"`
	DurationMin         float64           `json:"durationMin"`
	AdjustedDurationMin float64           `json:"adjustedDurationMin"`
	Exposure            Exposure          `json:"exposure"`
	Cost                float64           `json:"cost"`
	Traffic             *Traffic          `json:"traffic,omitempty"`
	Preference          *Preference       `json:"preference,omitempty"`
	Geometry            *geojson.Geometry `json:"geometry"`
}

// Traffic is the traffic estimate along a route.
type Traffic struct {
	Status          string  `json:"status"`
	DelayMinutes    float64 `json:"delayMinutes"`
	AverageSpeedKmh float64 `json:"averageSpeedKmh"`
	SampleCount     int     `json:"sampleCount"`
}

// Preference is the preference model's view of a route.
type Preference struct {
	Objective     string             `json:"objective"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}
