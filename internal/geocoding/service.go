// Package geocoding resolves free-text place names to coordinates.
package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/metrics"
)

// Sentinel errors for geocoding operations.
var (
	ErrNotFound            = errors.New("place not found")
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
	ErrEmptyQuery          = errors.New("empty place name")
)

// Error wraps a provider failure with context.
type Error struct {
	Provider string
	Query    string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s resolve %q: %v", e.Provider, e.Query, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Place is a resolved place name.
type Place struct {
	Name    string    `json:"name"`
	State   string    `json:"state,omitempty"`
	Country string    `json:"country"`
	Point   geo.Point `json:"location"`
}

// Provider resolves a place name.
type Provider interface {
	// Resolve returns the best match for name, or ErrNotFound.
	Resolve(ctx context.Context, name string) (*Place, error)
	Name() string
}

const cacheName = "geocoding"

// ServiceConfig holds configuration for the geocoding service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics

	// CacheSize bounds the number of cached names (default: 1024).
	CacheSize int

	// CacheTTL is how long a resolution is reused (default: 24 hours).
	CacheTTL time.Duration
}

// Service resolves place names with an LRU cache in front of the provider.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	cacheTTL time.Duration
	cache    *lru.Cache[string, cachedPlace]
}

type cachedPlace struct {
	place     *Place
	expiresAt time.Time
}

// NewService creates a geocoding service.
func NewService(cfg ServiceConfig) (*Service, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	cache, err := lru.New[string, cachedPlace](size)
	if err != nil {
		return nil, fmt.Errorf("creating geocoding cache: %w", err)
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		cacheTTL: ttl,
		cache:    cache,
	}, nil
}

// Resolve returns the place for name. Lookups are case-insensitive.
func (s *Service) Resolve(ctx context.Context, name string) (*Place, error) {
	query := strings.TrimSpace(name)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	key := strings.ToLower(query)

	if c, ok := s.cache.Get(key); ok && time.Now().Before(c.expiresAt) {
		s.metrics.CacheLookup(cacheName, true)
		return c.place, nil
	}
	s.metrics.CacheLookup(cacheName, false)

	place, err := s.provider.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeOK)
			return nil, err
		}
		s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeError)
		s.logger.Warn().
			Err(err).
			Str("query", query).
			Msg("geocoding failed")
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
		return nil, &Error{Provider: s.provider.Name(), Query: query, Err: fmt.Errorf("%w: %w", ErrProviderUnavailable, err)}
	}
	s.metrics.ProviderFetch(s.provider.Name(), metrics.OutcomeOK)

	s.cache.Add(key, cachedPlace{place: place, expiresAt: time.Now().Add(s.cacheTTL)})
	return place, nil
}
