package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/api/models"
	"github.com/breathway/breathway/internal/api/response"
	"github.com/breathway/breathway/internal/geocoding"
	"github.com/breathway/breathway/internal/weather"
)

// WeatherSource supplies current conditions and daily forecasts.
type WeatherSource interface {
	Conditions(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
	DailyForecast(ctx context.Context, lat, lon float64) ([]weather.DailySummary, error)
}

// PlaceHandler handles place lookup, conditions and forecast endpoints.
type PlaceHandler struct {
	places  PlaceResolver
	weather WeatherSource
	logger  zerolog.Logger
}

// NewPlaceHandler creates a new PlaceHandler.
func NewPlaceHandler(places PlaceResolver, weather WeatherSource, logger zerolog.Logger) *PlaceHandler {
	return &PlaceHandler{places: places, weather: weather, logger: logger}
}

// GetPlace handles GET /v1/places/{name} - resolve a place name.
func (h *PlaceHandler) GetPlace(w http.ResponseWriter, r *http.Request) {
	place, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	response.JSON(w, r, http.StatusOK, toPlace(place))
}

// GetConditions handles GET /v1/places/{name}/conditions - current weather and exposure.
func (h *PlaceHandler) GetConditions(w http.ResponseWriter, r *http.Request) {
	place, ok := h.lookup(w, r)
	if !ok {
		return
	}

	cond, err := h.weather.Conditions(r.Context(), place.Point.Lat, place.Point.Lon)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, models.ConditionsResponse{
		Place:    toPlace(place),
		Weather:  toWeather(cond.Observation),
		Exposure: toAirQuality(cond.Exposure),
	})
}

// GetForecast handles GET /v1/places/{name}/forecast - daily forecast.
func (h *PlaceHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	place, ok := h.lookup(w, r)
	if !ok {
		return
	}

	days, err := h.weather.DailyForecast(r.Context(), place.Point.Lat, place.Point.Lon)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := models.ForecastResponse{
		Place: toPlace(place),
		Days:  make([]models.ForecastDay, len(days)),
	}
	for i, d := range days {
		resp.Days[i] = toForecastDay(d)
	}

	w.Header().Set("Cache-Control", "public, max-age=1800")
	response.JSON(w, r, http.StatusOK, resp)
}

func (h *PlaceHandler) lookup(w http.ResponseWriter, r *http.Request) (*geocoding.Place, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		response.BadRequest(w, r, "malformed place name", nil)
		return nil, false
	}

	place, err := h.places.Resolve(r.Context(), name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	return place, true
}
