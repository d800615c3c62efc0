package routing

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/metrics"
)

const cacheName = "directions"

type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics

	// CacheTTL is how long a response is served without asking the provider
	// (default: 5m).
	CacheTTL time.Duration
	// StaleIfErrorTTL is how long after fetching a response may still stand
	// in for a failed provider call (default: 15m).
	StaleIfErrorTTL time.Duration
	// CacheGridSize is the cell size in degrees that request points are
	// snapped to (default: 0.01, about 1.1 km).
	CacheGridSize float64
	CacheSize     int
}

// Service is a caching Provider. Requests whose points fall into the same
// grid cells share a response, and concurrent misses share one fetch.
type Service struct {
	provider Provider
	log      zerolog.Logger
	metrics  *metrics.Metrics
	fresh    time.Duration
	stale    time.Duration
	grid     float64

	cache   *expirable.LRU[string, cachedDirections]
	flights singleflight.Group
}

type cachedDirections struct {
	resp      *DirectionsResponse
	fetchedAt time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	s := &Service{
		provider: cfg.Provider,
		log:      cfg.Logger.With().Str("provider", cfg.Provider.Name()).Logger(),
		metrics:  cfg.Metrics,
		fresh:    durationOr(cfg.CacheTTL, 5*time.Minute),
		stale:    durationOr(cfg.StaleIfErrorTTL, 15*time.Minute),
		grid:     cfg.CacheGridSize,
	}
	if s.grid <= 0 {
		s.grid = 0.01
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	// Entries live for the longer of the two windows; freshness is decided
	// per lookup from fetchedAt.
	s.cache = expirable.NewLRU[string, cachedDirections](size, nil, max(s.fresh, s.stale))
	return s, nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (s *Service) Name() string {
	return s.provider.Name()
}

// GetDirections serves fresh cache entries, otherwise asks the provider and
// falls back to a stale entry when that fails.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	if err := req.validate(s.provider.Name()); err != nil {
		return nil, err
	}

	key := s.key(req)
	if c, ok := s.cache.Get(key); ok && time.Since(c.fetchedAt) < s.fresh {
		s.metrics.CacheLookup(cacheName, true)
		return c.resp, nil
	}
	s.metrics.CacheLookup(cacheName, false)

	v, err, _ := s.flights.Do(key, func() (any, error) {
		return s.refresh(ctx, req, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*DirectionsResponse), nil
}

func (s *Service) refresh(ctx context.Context, req DirectionsRequest, key string) (*DirectionsResponse, error) {
	resp, err := s.provider.GetDirections(ctx, req)
	if err == nil {
		s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeOK)
		s.cache.Add(key, cachedDirections{resp: resp, fetchedAt: time.Now()})
		s.log.Debug().Str("key", key).Int("routes", len(resp.Routes)).Msg("directions cached")
		return resp, nil
	}

	if c, ok := s.cache.Peek(key); ok && time.Since(c.fetchedAt) < s.stale {
		s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeStale)
		s.log.Warn().Err(err).Str("key", key).Time("fetched_at", c.fetchedAt).Msg("serving stale directions")
		return c.resp, nil
	}
	s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeError)
	return nil, err
}

// key is profile|preference|alternatives|cells, each point snapped to the grid.
func (s *Service) key(req DirectionsRequest) string {
	parts := []string{string(req.Profile), string(req.Preference), strconv.Itoa(req.MaxAlternatives)}
	parts = append(parts, s.cell(req.Origin))
	for _, wp := range req.Waypoints {
		parts = append(parts, s.cell(wp))
	}
	parts = append(parts, s.cell(req.Destination))
	return strings.Join(parts, "|")
}

func (s *Service) cell(p geo.Point) string {
	c := p.Snap(s.grid)
	return strconv.FormatFloat(c.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 4, 64)
}

// InvalidateCache drops every cached response.
func (s *Service) InvalidateCache() {
	s.cache.Purge()
}

type CacheStats struct {
	Provider     string
	TotalEntries int
	FreshEntries int
	StaleEntries int
}

func (s *Service) CacheStats() CacheStats {
	stats := CacheStats{Provider: s.provider.Name()}
	for _, c := range s.cache.Values() {
		stats.TotalEntries++
		switch age := time.Since(c.fetchedAt); {
		case age < s.fresh:
			stats.FreshEntries++
		case age < s.stale:
			stats.StaleEntries++
		}
	}
	return stats
}
