package weather

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/metrics"
)

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetCurrentWeather fetches current weather for a location.
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error)

	// GetForecast fetches the step forecast for a location.
	GetForecast(ctx context.Context, lat, lon float64) (*Forecast, error)

	// Name returns the provider name for logging.
	Name() string
}

// AirQuality supplies current and forecast exposure readings.
type AirQuality interface {
	GetReading(ctx context.Context, lat, lon float64) (*airquality.Reading, error)
	GetForecast(ctx context.Context, lat, lon float64) ([]airquality.Reading, error)
}

const (
	observationCache = "weather"
	forecastCache    = "weather_forecast"
)

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the weather data provider.
	Provider Provider

	// AirQuality adds exposure to conditions and forecasts (optional).
	AirQuality AirQuality

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider and cache outcomes (optional).
	Metrics *metrics.Metrics

	// CacheTTL is how long to cache weather data (default: 10 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.1).
	// Points within the same grid cell share cached data.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// CacheSize bounds each cache (default: 512).
	CacheSize int

	// Location defines calendar days for daily summaries (default: time.Local).
	Location *time.Location

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service provides weather data with caching.
type Service struct {
	provider        Provider
	airQuality      AirQuality
	logger          zerolog.Logger
	metrics         *metrics.Metrics
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	location        *time.Location
	now             func() time.Time

	observations *lru.Cache[string, *cached[*Observation]]
	forecasts    *lru.Cache[string, *cached[*Forecast]]
	group        singleflight.Group
}

type cached[T any] struct {
	value     T
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) (*Service, error) {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.1 // ~11km at equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 512
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	observations, err := lru.New[string, *cached[*Observation]](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating weather cache: %w", err)
	}
	forecasts, err := lru.New[string, *cached[*Forecast]](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating forecast cache: %w", err)
	}

	return &Service{
		provider:        cfg.Provider,
		airQuality:      cfg.AirQuality,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		location:        loc,
		now:             now,
		observations:    observations,
		forecasts:       forecasts,
	}, nil
}

// GetCurrentWeather returns current weather for a location.
// Uses cached data if available and not expired.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	return fetchCached(ctx, s, s.observations, observationCache, "obs:"+s.cacheKey(lat, lon),
		func(ctx context.Context) (*Observation, error) {
			return s.provider.GetCurrentWeather(ctx, lat, lon)
		})
}

// GetForecast returns the step forecast for a location.
func (s *Service) GetForecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	return fetchCached(ctx, s, s.forecasts, forecastCache, "fc:"+s.cacheKey(lat, lon),
		func(ctx context.Context) (*Forecast, error) {
			return s.provider.GetForecast(ctx, lat, lon)
		})
}

// Conditions returns current weather and exposure for a location. A failed
// exposure lookup leaves Exposure nil; a failed weather lookup is an error.
func (s *Service) Conditions(ctx context.Context, lat, lon float64) (*Conditions, error) {
	var (
		reading *airquality.Reading
		wg      sync.WaitGroup
	)
	if s.airQuality != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.airQuality.GetReading(ctx, lat, lon)
			if err != nil {
				s.logger.Warn().Err(err).
					Float64("lat", lat).
					Float64("lon", lon).
					Msg("exposure unavailable for conditions")
				return
			}
			reading = r
		}()
	}

	obs, err := s.GetCurrentWeather(ctx, lat, lon)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	return &Conditions{Observation: obs, Exposure: reading}, nil
}

// DailyForecast summarises the forecast per calendar day, skipping today.
// Exposure is averaged from the pollution forecast when available.
func (s *Service) DailyForecast(ctx context.Context, lat, lon float64) ([]DailySummary, error) {
	var (
		readings []airquality.Reading
		wg       sync.WaitGroup
	)
	if s.airQuality != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs, err := s.airQuality.GetForecast(ctx, lat, lon)
			if err != nil {
				s.logger.Warn().Err(err).Msg("pollution forecast unavailable")
				return
			}
			readings = rs
		}()
	}

	fc, err := s.GetForecast(ctx, lat, lon)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	return Summarize(fc.Entries, readings, s.now(), s.location), nil
}

// fetchCached serves key from cache when fresh, otherwise fetches it once for
// all concurrent callers, falling back to a stale entry on provider errors.
func fetchCached[T any](
	ctx context.Context,
	s *Service,
	cache *lru.Cache[string, *cached[T]],
	cacheName, key string,
	fetch func(context.Context) (T, error),
) (T, error) {
	if c, ok := cache.Get(key); ok && time.Now().Before(c.expiresAt) {
		s.metrics.CacheLookup(cacheName, true)
		return c.value, nil
	}
	s.metrics.CacheLookup(cacheName, false)

	v, err, _ := s.group.Do(key, func() (any, error) {
		s.logger.Debug().
			Str("key", key).
			Str("provider", s.provider.Name()).
			Msg("fetching weather from provider")

		value, err := fetch(ctx)
		if err != nil {
			if c, ok := cache.Peek(key); ok && time.Now().Before(c.fetchedAt.Add(s.staleIfErrorTTL)) {
				s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeStale)
				s.logger.Warn().
					Err(err).
					Time("fetched_at", c.fetchedAt).
					Msg("serving stale weather data due to provider error")
				return c.value, nil
			}

			s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeError)
			s.logger.Error().Err(err).Str("key", key).Msg("failed to fetch weather")
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
		}

		s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeOK)
		now := time.Now()
		cache.Add(key, &cached[T]{value: value, fetchedAt: now, expiresAt: now.Add(s.cacheTTL)})
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// cacheKey generates a cache key for a location.
// Groups nearby points into grid cells to reduce API calls.
func (s *Service) cacheKey(lat, lon float64) string {
	gridLat := math.Floor(lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(lon/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("%.2f:%.2f", gridLat, gridLon)
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.observations.Purge()
	s.forecasts.Purge()
}

// CacheStats contains cache statistics.
type CacheStats struct {
	WeatherEntries  int
	ForecastEntries int
	Provider        string
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	return CacheStats{
		WeatherEntries:  s.observations.Len(),
		ForecastEntries: s.forecasts.Len(),
		Provider:        s.provider.Name(),
	}
}

func validateCoordinates(lat, lon float64) error {
	if err := (geo.Point{Lat: lat, Lon: lon}).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCoordinates, err)
	}
	return nil
}
