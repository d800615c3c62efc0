// Package handler provides HTTP handlers for the breathway API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/api/response"
	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/geocoding"
	"github.com/breathway/breathway/internal/history"
	"github.com/breathway/breathway/internal/routing"
	"github.com/breathway/breathway/internal/traffic"
	"github.com/breathway/breathway/internal/weather"
)

// writeError maps a domain error onto its Problem response. Errors without
// a mapping are logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, fallback zerolog.Logger, err error) {
	log := requestLogger(r, fallback)
	switch {
	case errors.Is(err, geo.ErrInvalidCoordinates),
		errors.Is(err, routing.ErrInvalidCoordinates),
		errors.Is(err, geocoding.ErrEmptyQuery),
		errors.Is(err, history.ErrMissingUserID):
		response.BadRequest(w, r, err.Error(), nil)

	case errors.Is(err, geocoding.ErrNotFound),
		errors.Is(err, weather.ErrNoDataForLocation):
		response.NotFound(w, r, err.Error())

	case errors.Is(err, routing.ErrNoRouteFound):
		response.NoRoute(w, r, "no route connects the origin and destination")

	case errors.Is(err, routing.ErrRateLimitExceeded):
		response.ServiceUnavailable(w, r, "routing quota exhausted, try again later")

	case errors.Is(err, airquality.ErrProviderUnavailable),
		errors.Is(err, routing.ErrProviderUnavailable),
		errors.Is(err, geocoding.ErrProviderUnavailable),
		errors.Is(err, weather.ErrProviderUnavailable),
		errors.Is(err, traffic.ErrProviderUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream unavailable")
		response.ServiceUnavailable(w, r, "an upstream data provider is unavailable")

	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

// requestLogger prefers the logger the Logger middleware scoped to r.
func requestLogger(r *http.Request, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}
