// Package tomtom provides a traffic flow provider backed by the TomTom
// Traffic Flow Segment Data API.
package tomtom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/provider/resilience"
	"github.com/breathway/breathway/internal/traffic"
)

const (
	// ProviderName identifies this traffic provider.
	ProviderName = "tomtom"

	// DefaultBaseURL is the TomTom API base URL.
	DefaultBaseURL = "https://api.tomtom.com"

	// DefaultTimeout bounds a single point lookup.
	DefaultTimeout = 5 * time.Second

	flowPath = "/traffic/services/4/flowSegmentData/absolute/10/json"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the TomTom client.
type ClientConfig struct {
	// APIKey is the TomTom API key (required).
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient HTTPDoer

	// Timeout bounds each lookup when HTTPClient is nil (default: 5s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is a TomTom traffic flow client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new TomTom client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		clientCfg := resilience.PointLookupConfig(ProviderName, timeout)
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

// GetFlow fetches flow for the road segment closest to the point.
func (c *Client) GetFlow(ctx context.Context, lat, lon float64) (*traffic.Flow, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("point", strconv.FormatFloat(lat, 'f', 6, 64)+","+strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("unit", "KMPH")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+flowPath+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &traffic.Error{Provider: ProviderName, Op: "flow", Err: fmt.Errorf("%w: %w", traffic.ErrProviderUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest:
		// Returned when the point is too far from any road.
		return nil, &traffic.Error{Provider: ProviderName, Op: "flow", Err: traffic.ErrNoFlowData}
	default:
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Msg("traffic flow request failed")
		return nil, &traffic.Error{
			Provider: ProviderName,
			Op:       "flow",
			Err:      fmt.Errorf("%w: status %d", traffic.ErrProviderUnavailable, resp.StatusCode),
		}
	}

	var fr flowResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if fr.FlowSegmentData == nil {
		return nil, &traffic.Error{Provider: ProviderName, Op: "flow", Err: traffic.ErrNoFlowData}
	}

	d := fr.FlowSegmentData
	return &traffic.Flow{
		CurrentSpeedKmh:       d.CurrentSpeed,
		FreeFlowSpeedKmh:      d.FreeFlowSpeed,
		CurrentTravelTimeSec:  d.CurrentTravelTime,
		FreeFlowTravelTimeSec: d.FreeFlowTravelTime,
		Confidence:            d.Confidence,
	}, nil
}

type flowResponse struct {
	FlowSegmentData *struct {
		FRC                string  `json:"frc"`
		CurrentSpeed       float64 `json:"currentSpeed"`
		FreeFlowSpeed      float64 `json:"freeFlowSpeed"`
		CurrentTravelTime  float64 `json:"currentTravelTime"`
		FreeFlowTravelTime float64 `json:"freeFlowTravelTime"`
		Confidence         float64 `json:"confidence"`
		RoadClosure        bool    `json:"roadClosure"`
	} `json:"flowSegmentData"`
}
