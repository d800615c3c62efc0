// Package openweathermap provides a geocoding provider backed by the
// OpenWeatherMap direct geocoding API.
package openweathermap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/geocoding"
	"github.com/breathway/breathway/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "openweathermap-geocoding"

	// DefaultBaseURL is the OpenWeatherMap geocoding API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/geo/1.0"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the geocoding client.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient HTTPDoer
	Timeout    time.Duration
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client is an OpenWeatherMap geocoding client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Resolve returns the first match for name.
func (c *Client) Resolve(ctx context.Context, name string) (*geocoding.Place, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("limit", "1")
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/direct?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &geocoding.Error{Provider: ProviderName, Query: name, Err: fmt.Errorf("%w: %w", geocoding.ErrProviderUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("query", name).
			Msg("geocoding request failed")
		return nil, &geocoding.Error{
			Provider: ProviderName,
			Query:    name,
			Err:      fmt.Errorf("%w: status %d", geocoding.ErrProviderUnavailable, resp.StatusCode),
		}
	}

	var matches []directMatch
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(matches) == 0 {
		return nil, &geocoding.Error{Provider: ProviderName, Query: name, Err: geocoding.ErrNotFound}
	}

	m := matches[0]
	return &geocoding.Place{
		Name:    m.Name,
		State:   m.State,
		Country: m.Country,
		Point:   geo.Point{Lat: m.Lat, Lon: m.Lon},
	}, nil
}

type directMatch struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}
