// Package history records ranked trips per user and exports them.
package history

import (
	"errors"
	"time"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/geo"
)

// History errors.
var (
	ErrMissingUserID = errors.New("user id is required")
	ErrNoRecommended = errors.New("result has no recommended route")
)

// Record is one ranked trip with the route that was recommended.
type Record struct {
	ID          string
	UserID      string
	Origin      Endpoint
	Destination Endpoint
	Profile     string

	DistanceKm          float64
	DurationMin         float64
	AdjustedDurationMin float64
	Exposure            airquality.Index
	Label               string
	Source              string
	CandidateCount      int

	CreatedAt time.Time
}

// Endpoint is a trip endpoint as the user entered it.
type Endpoint struct {
	// Name is empty when the endpoint was given as coordinates.
	Name     string
	Point    geo.Point
	Exposure airquality.Index
}
