// Package ranking scores route candidates on time, distance and exposure,
// and orchestrates candidate generation and enrichment into a ranked result.
package ranking

import (
	"context"
	"errors"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/routing"
	"github.com/breathway/breathway/internal/traffic"
)

// ErrModelUnavailable is returned by a PreferenceModel that cannot predict.
var ErrModelUnavailable = errors.New("preference model unavailable")

// Objective is the optimization label attached to a candidate.
type Objective string

const (
	ObjectiveFastest  Objective = "fastest"
	ObjectiveCleanest Objective = "cleanest"
	ObjectiveBalanced Objective = "balanced"
)

// Objectives lists the labels in model class order.
var Objectives = []Objective{ObjectiveFastest, ObjectiveCleanest, ObjectiveBalanced}

// Valid reports whether o is a known objective.
func (o Objective) Valid() bool {
	switch o {
	case ObjectiveFastest, ObjectiveCleanest, ObjectiveBalanced:
		return true
	}
	return false
}

// Candidate is a route with its exposure and traffic estimates.
type Candidate struct {
	routing.Candidate

	// Traffic is nil when traffic was not estimated for this candidate.
	Traffic             *traffic.Summary
	AdjustedDurationMin float64
	Exposure            airquality.Index

	Label Objective
	Cost  float64

	// Preference is the model's view of this candidate, when a model ran.
	Preference *Prediction
}

// EffectiveDuration is the traffic-adjusted duration when known, else the base duration.
func (c *Candidate) EffectiveDuration() float64 {
	if c.Traffic != nil && c.Traffic.Known() {
		return c.AdjustedDurationMin
	}
	return c.DurationMin
}

// trafficDelay returns the known delay or zero.
func (c *Candidate) trafficDelay() float64 {
	if c.Traffic == nil || !c.Traffic.Known() {
		return 0
	}
	return c.Traffic.DelayMinutes
}

// RecommendationSource records why a candidate was recommended.
type RecommendationSource string

const (
	SourceExposure RecommendationSource = "exposure"
	SourceModel    RecommendationSource = "model"
)

// Result is the ranked candidate set.
type Result struct {
	Candidates           []Candidate
	RecommendedIndex     int
	RecommendationSource RecommendationSource
}

// Recommended returns the recommended candidate, or nil for an empty result.
func (r *Result) Recommended() *Candidate {
	if r == nil || r.RecommendedIndex < 0 || r.RecommendedIndex >= len(r.Candidates) {
		return nil
	}
	return &r.Candidates[r.RecommendedIndex]
}

// Features is the preference model input for one candidate.
type Features struct {
	DistanceKm   float64 `json:"distance"`
	DurationMin  float64 `json:"duration"`
	Exposure     float64 `json:"aqi"`
	TrafficDelay float64 `json:"traffic_delay"`
	Hour         int     `json:"hour"`
	DayOfWeek    int     `json:"day_of_week"` // Monday = 0
	IsWeekend    bool    `json:"is_weekend"`
}

// Prediction is a model's preferred objective and per-objective confidence.
type Prediction struct {
	Objective    Objective             `json:"objective"`
	Distribution map[Objective]float64 `json:"distribution"`
}

// Confidence returns the probability assigned to the predicted objective.
func (p *Prediction) Confidence() float64 {
	return p.Distribution[p.Objective]
}

// PreferenceModel predicts which objective a traveller prefers for a candidate.
type PreferenceModel interface {
	Predict(ctx context.Context, f Features) (*Prediction, error)
}
