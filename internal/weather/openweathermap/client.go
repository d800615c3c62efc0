// Package openweathermap implements weather.Provider on the OpenWeatherMap
// current weather and 5 day / 3 hour forecast endpoints.
package openweathermap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/provider/resilience"
	"github.com/breathway/breathway/internal/weather"
)

const (
	ProviderName   = "openweathermap-weather"
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient HTTPDoer
	Timeout    time.Duration
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

type Client struct {
	key  string
	base string
	http HTTPDoer
	log  zerolog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	doer := cfg.HTTPClient
	if doer == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		rc.Registry = cfg.Registry
		doer = resilience.NewClient(rc)
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{key: cfg.APIKey, base: strings.TrimRight(base, "/"), http: doer, log: cfg.Logger}
}

func (c *Client) Name() string {
	return ProviderName
}

func (c *Client) GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error) {
	cur, err := fetch[currentWeather](ctx, c, "/weather", lat, lon)
	if err != nil {
		return nil, err
	}

	condition, description := firstCondition(cur.Weather)
	return &weather.Observation{
		Lat:           cur.Coord.Lat,
		Lon:           cur.Coord.Lon,
		Temperature:   cur.Main.Temp,
		FeelsLike:     cur.Main.FeelsLike,
		Humidity:      cur.Main.Humidity,
		WindSpeed:     cur.Wind.Speed,
		WindDirection: cur.Wind.Deg,
		Pressure:      cur.Main.Pressure,
		Condition:     condition,
		Description:   description,
		VisibilityKm:  float64(cur.Visibility) / 1000,
		ObservedAt:    time.Unix(cur.Dt, 0),
		FetchedAt:     time.Now(),
	}, nil
}

func (c *Client) GetForecast(ctx context.Context, lat, lon float64) (*weather.Forecast, error) {
	fc, err := fetch[forecast](ctx, c, "/forecast", lat, lon)
	if err != nil {
		return nil, err
	}
	if len(fc.List) == 0 {
		return nil, weather.ErrNoDataForLocation
	}

	entries := make([]weather.ForecastEntry, len(fc.List))
	for i, step := range fc.List {
		condition, _ := firstCondition(step.Weather)
		entries[i] = weather.ForecastEntry{
			Time:        time.Unix(step.Dt, 0),
			Temperature: step.Main.Temp,
			WindSpeed:   step.Wind.Speed,
			Condition:   condition,
		}
	}
	return &weather.Forecast{
		Lat:       fc.City.Coord.Lat,
		Lon:       fc.City.Coord.Lon,
		Entries:   entries,
		FetchedAt: time.Now(),
	}, nil
}

// fetch GETs path for the point in metric units and decodes the reply as T.
func fetch[T any](ctx context.Context, c *Client, path string, lat, lon float64) (*T, error) {
	q := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', 6, 64)},
		"units": {"metric"},
		"appid": {c.key},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", ProviderName, path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, weather.ErrNoDataForLocation
	default:
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("weather request failed")
		return nil, fmt.Errorf("%s %s: unexpected status %d", ProviderName, path, resp.StatusCode)
	}

	out := new(T)
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return out, nil
}

// conditions maps the OpenWeatherMap "main" group onto weather conditions.
var conditions = map[string]weather.Condition{
	"Clear":        weather.ConditionClear,
	"Clouds":       weather.ConditionClouds,
	"Rain":         weather.ConditionRain,
	"Drizzle":      weather.ConditionDrizzle,
	"Thunderstorm": weather.ConditionThunderstorm,
	"Snow":         weather.ConditionSnow,
	"Mist":         weather.ConditionMist,
	"Fog":          weather.ConditionFog,
	"Smoke":        weather.ConditionSmoke,
	"Dust":         weather.ConditionDust,
	"Sand":         weather.ConditionDust,
	"Ash":          weather.ConditionDust,
	"Haze":         weather.ConditionHaze,
	"Squall":       weather.ConditionHaze,
	"Tornado":      weather.ConditionHaze,
}

func firstCondition(groups []conditionGroup) (weather.Condition, string) {
	if len(groups) == 0 {
		return weather.ConditionUnknown, ""
	}
	c, ok := conditions[groups[0].Main]
	if !ok {
		c = weather.ConditionUnknown
	}
	return c, groups[0].Description
}

type conditionGroup struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type currentWeather struct {
	Coord   coord            `json:"coord"`
	Weather []conditionGroup `json:"weather"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Dt int64 `json:"dt"`
}

type forecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []conditionGroup `json:"weather"`
		Wind    struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	} `json:"list"`
	City struct {
		Coord coord `json:"coord"`
	} `json:"city"`
}
