// Package traffic estimates congestion delay along a route from point flow
// measurements.
package traffic

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Provider errors.
var (
	ErrProviderUnavailable = errors.New("traffic provider unavailable")
	ErrNoFlowData          = errors.New("no flow data for location")
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

// Provider returns live flow for the road segment nearest a point.
type Provider interface {
	GetFlow(ctx context.Context, lat, lon float64) (*Flow, error)
	Name() string
}

// Flow is a flow measurement for one road segment.
type Flow struct {
	CurrentSpeedKmh  float64
	FreeFlowSpeedKmh float64

	// Travel times across the segment, in seconds.
	CurrentTravelTimeSec  float64
	FreeFlowTravelTimeSec float64

	// Confidence is the provider's confidence in the measurement, 0..1.
	Confidence float64
}

// Status is the coarse congestion level of a route.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusLight    Status = "light"
	StatusModerate Status = "moderate"
	StatusHeavy    Status = "heavy"
)

// Delay thresholds in minutes.
const (
	lightDelayLimit    = 5.0
	moderateDelayLimit = 15.0
)

// StatusForDelay classifies a known delay.
func StatusForDelay(delayMin float64) Status {
	switch {
	case delayMin < lightDelayLimit:
		return StatusLight
	case delayMin < moderateDelayLimit:
		return StatusModerate
	default:
		return StatusHeavy
	}
}

// Summary aggregates flow samples along a route.
type Summary struct {
	Status          Status  `json:"status"`
	DelayMinutes    float64 `json:"delayMinutes"`
	AverageSpeedKmh float64 `json:"averageSpeedKmh"`
	SampleCount     int     `json:"samples"`
}

// Unknown is the summary used when no flow sample succeeded.
var Unknown = Summary{Status: StatusUnknown}

// Known reports whether the summary carries real data.
func (s Summary) Known() bool {
	return s.Status != StatusUnknown && s.Status != ""
}

// AdjustedDuration returns the base duration plus the traffic delay, rounded
// to 0.1 minute. With unknown traffic the base duration is returned unchanged.
func AdjustedDuration(baseMin float64, s Summary) float64 {
	if !s.Known() {
		return baseMin
	}
	return round1(baseMin + s.DelayMinutes)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
