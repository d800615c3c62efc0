// Package routing computes routes between two points and generates the
// distinct candidate set that exposure ranking chooses from.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"

	"github.com/breathway/breathway/internal/geo"
)

var (
	// ErrProviderUnavailable covers outages, open circuits and bad replies.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	ErrNoRouteFound        = errors.New("no route found between the given points")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Provider computes directions. Implementations return *Error.
type Provider interface {
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	Name() string
}

// Profile is the mode of transport.
type Profile string

const (
	ProfileCar     Profile = "driving-car"
	ProfileHGV     Profile = "driving-hgv"
	ProfileBike    Profile = "cycling-regular"
	ProfileWalking Profile = "foot-walking"
)

func (p Profile) Valid() bool {
	switch p {
	case ProfileCar, ProfileHGV, ProfileBike, ProfileWalking:
		return true
	}
	return false
}

// Preference selects the provider's path cost function.
type Preference string

const (
	PreferenceFastest     Preference = "fastest"
	PreferenceShortest    Preference = "shortest"
	PreferenceRecommended Preference = "recommended"
)

type DirectionsRequest struct {
	Origin      geo.Point
	Destination geo.Point
	Profile     Profile
	Preference  Preference
	// Waypoints are visited in order between origin and destination.
	Waypoints []geo.Point
	// MaxAlternatives below 2 requests a single route.
	MaxAlternatives int
}

// validate checks every point of the request, reporting which end failed.
func (r DirectionsRequest) validate(provider string) error {
	if r.Origin.Validate() != nil {
		return &Error{Provider: provider, Code: "INVALID_ORIGIN", Message: "invalid origin coordinates", Err: ErrInvalidCoordinates}
	}
	if r.Destination.Validate() != nil {
		return &Error{Provider: provider, Code: "INVALID_DESTINATION", Message: "invalid destination coordinates", Err: ErrInvalidCoordinates}
	}
	for _, wp := range r.Waypoints {
		if wp.Validate() != nil {
			return &Error{Provider: provider, Code: "INVALID_WAYPOINT", Message: "invalid waypoint coordinates", Err: ErrInvalidCoordinates}
		}
	}
	return nil
}

type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is one provider route. Distance is in km, duration in minutes.
type Route struct {
	Geometry    geo.Path
	DistanceKm  float64
	DurationMin float64
	// Summary names the main road, e.g. "via NH 48".
	Summary string
	Bounds  orb.Bound
}

// Error is a provider failure classified onto one of the sentinel errors.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is transient.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
