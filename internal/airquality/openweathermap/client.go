// Package openweathermap provides an air quality provider backed by the
// OpenWeatherMap air pollution API.
package openweathermap

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

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/provider/resilience"
)

const (
	// ProviderName identifies this air quality provider.
	ProviderName = "openweathermap-air"

	// DefaultBaseURL is the OpenWeatherMap data API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// DefaultTimeout bounds a single point lookup.
	DefaultTimeout = 5 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the air pollution client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a point-lookup resilient client without retries.
	HTTPClient HTTPDoer

	// Timeout bounds each lookup when HTTPClient is nil (default: 5s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap air pollution API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new air pollution client.
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

// GetReading fetches current air pollution for a location.
func (c *Client) GetReading(ctx context.Context, lat, lon float64) (*airquality.Reading, error) {
	var resp pollutionResponse
	if err := c.get(ctx, "/air_pollution", lat, lon, &resp); err != nil {
		return nil, err
	}
	if len(resp.List) == 0 {
		return nil, airquality.ErrNoMeasurements
	}

	reading := toReading(resp.Coord.Lat, resp.Coord.Lon, &resp.List[0])
	return &reading, nil
}

// GetForecast fetches the hourly air pollution forecast for a location.
func (c *Client) GetForecast(ctx context.Context, lat, lon float64) ([]airquality.Reading, error) {
	var resp pollutionResponse
	if err := c.get(ctx, "/air_pollution/forecast", lat, lon, &resp); err != nil {
		return nil, err
	}

	readings := make([]airquality.Reading, 0, len(resp.List))
	for i := range resp.List {
		readings = append(readings, toReading(resp.Coord.Lat, resp.Coord.Lon, &resp.List[i]))
	}
	return readings, nil
}

func (c *Client) get(ctx context.Context, path string, lat, lon float64, out any) error {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("path", path).
			Msg("air pollution request failed")
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func toReading(lat, lon float64, item *pollutionItem) airquality.Reading {
	reading := airquality.Reading{
		Lat:        lat,
		Lon:        lon,
		Category:   item.Main.AQI,
		MeasuredAt: time.Unix(item.Dt, 0),
		FetchedAt:  time.Now(),
	}

	if item.Components != nil {
		reading.Components = &airquality.Components{
			CO:   item.Components.CO,
			NO:   item.Components.NO,
			NO2:  item.Components.NO2,
			O3:   item.Components.O3,
			SO2:  item.Components.SO2,
			PM25: item.Components.PM25,
			PM10: item.Components.PM10,
			NH3:  item.Components.NH3,
		}
	}

	reading.Index = airquality.ComputeIndex(reading.Category, reading.Components)
	return reading
}

// OpenWeatherMap air pollution response structures.

type pollutionResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	List []pollutionItem `json:"list"`
}

type pollutionItem struct {
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components *struct {
		CO   float64 `json:"co"`
		NO   float64 `json:"no"`
		NO2  float64 `json:"no2"`
		O3   float64 `json:"o3"`
		SO2  float64 `json:"so2"`
		PM25 float64 `json:"pm2_5"`
		PM10 float64 `json:"pm10"`
		NH3  float64 `json:"nh3"`
	} `json:"components"`
	Dt int64 `json:"dt"`
}
