package airquality

import (
	"context"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/metrics"
)

// Provider defines the interface for point air quality providers.
type Provider interface {
	// GetReading fetches the current air quality at a location.
	GetReading(ctx context.Context, lat, lon float64) (*Reading, error)

	// Name returns the provider name for logging.
	Name() string
}

// ForecastProvider is implemented by providers that also forecast air quality.
type ForecastProvider interface {
	GetForecast(ctx context.Context, lat, lon float64) ([]Reading, error)
}

const cacheName = "exposure"

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Provider is the air quality data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider and cache outcomes (optional).
	Metrics *metrics.Metrics

	// CacheTTL is how long a reading is served from cache (default: 15 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale readings on provider errors (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.01).
	// Points within the same cell share a reading.
	CacheGridSize float64

	// CacheSize bounds the number of cached cells (default: 4096).
	CacheSize int
}

// Service provides cached point air quality readings.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	metrics         *metrics.Metrics
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	cacheGridSize   float64

	cache *lru.Cache[string, *cachedReading]
	group singleflight.Group
}

type cachedReading struct {
	reading   *Reading
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) (*Service, error) {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 15 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.01 // ~1.1km at equator
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 4096
	}

	cache, err := lru.New[string, *cachedReading](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating exposure cache: %w", err)
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		cacheGridSize:   cacheGridSize,
		cache:           cache,
	}, nil
}

// GetReading returns the air quality reading for a location, from cache when fresh.
// Concurrent misses for the same grid cell share one provider call.
func (s *Service) GetReading(ctx context.Context, lat, lon float64) (*Reading, error) {
	if err := (geo.Point{Lat: lat, Lon: lon}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCoordinates, err)
	}

	key := s.cacheKey(lat, lon)

	if cached, ok := s.cache.Get(key); ok && time.Now().Before(cached.expiresAt) {
		s.metrics.CacheLookup(cacheName, true)
		return cached.reading, nil
	}
	s.metrics.CacheLookup(cacheName, false)

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.fetchReading(ctx, lat, lon, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Reading), nil
}

// ExposureAt returns the exposure index at a point.
func (s *Service) ExposureAt(ctx context.Context, p geo.Point) (Index, error) {
	r, err := s.GetReading(ctx, p.Lat, p.Lon)
	if err != nil {
		return 0, err
	}
	return r.Index, nil
}

// GetForecast returns forecast readings when the provider supports them.
func (s *Service) GetForecast(ctx context.Context, lat, lon float64) ([]Reading, error) {
	fp, ok := s.provider.(ForecastProvider)
	if !ok {
		return nil, &Error{Provider: s.provider.Name(), Op: "forecast", Err: ErrNoMeasurements}
	}

	readings, err := fp.GetForecast(ctx, lat, lon)
	if err != nil {
		s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeError)
		return nil, &Error{Provider: s.provider.Name(), Op: "forecast", Err: fmt.Errorf("%w: %w", ErrProviderUnavailable, err)}
	}
	s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeOK)
	return readings, nil
}

// InvalidateCache drops all cached readings.
func (s *Service) InvalidateCache() {
	s.cache.Purge()
}

// CacheStats describes the current cache state.
type CacheStats struct {
	Entries  int
	GridSize float64
	TTL      time.Duration
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	return CacheStats{
		Entries:  s.cache.Len(),
		GridSize: s.cacheGridSize,
		TTL:      s.cacheTTL,
	}
}

func (s *Service) fetchReading(ctx context.Context, lat, lon float64, key string) (*Reading, error) {
	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("provider", s.provider.Name()).
		Msg("fetching air quality from provider")

	reading, err := s.provider.GetReading(ctx, lat, lon)
	if err != nil {
		// Peek so a stale entry is not promoted in the LRU order.
		if cached, ok := s.cache.Peek(key); ok && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeStale)
			s.logger.Warn().
				Err(err).
				Str("cell", key).
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale air quality due to provider error")
			return cached.reading, nil
		}

		s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeError)
		return nil, &Error{
			Provider: s.provider.Name(),
			Op:       "reading",
			Err:      fmt.Errorf("%w: %w", ErrProviderUnavailable, err),
		}
	}

	s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeOK)

	now := time.Now()
	s.cache.Add(key, &cachedReading{
		reading:   reading,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	})

	return reading, nil
}

// cacheKey quantizes a location to its grid cell.
func (s *Service) cacheKey(lat, lon float64) string {
	gridLat := math.Floor(lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(lon/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("%.4f:%.4f", gridLat, gridLon)
}
