// Package config loads service configuration from struct defaults, an
// optional YAML file and BREATHWAY_ environment variables, in that order.
package config

import (
	"time"

	"github.com/breathway/breathway/internal/database"
)

// Config is the complete service configuration.
type Config struct {
	Env string `koanf:"env" validate:"oneof=development staging production test"`

	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Engine    EngineConfig    `koanf:"engine"`
	Providers ProvidersConfig `koanf:"providers"`
	Cache     CacheConfig     `koanf:"cache"`
	Database  database.Config `koanf:"database"`
	PubSub    PubSubConfig    `koanf:"pubsub"`
	Worker    WorkerConfig    `koanf:"worker"`
	Model     ModelConfig     `koanf:"model"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Requests int           `koanf:"requests" validate:"required_if=Enabled true"`
	Window   time.Duration `koanf:"window" validate:"required_if=Enabled true"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

// EngineConfig tunes candidate generation, enrichment and the shared pool.
type EngineConfig struct {
	PoolWidth   int           `koanf:"pool_width" validate:"min=1,max=256"`
	TaskTimeout time.Duration `koanf:"task_timeout" validate:"gt=0"`

	ExposureIntervalKm float64 `koanf:"exposure_interval_km" validate:"gt=0"`
	TrafficIntervalKm  float64 `koanf:"traffic_interval_km" validate:"gt=0"`
	TrafficMaxSamples  int     `koanf:"traffic_max_samples" validate:"min=1"`
	TrafficCandidates  int     `koanf:"traffic_candidates" validate:"min=0"`

	FastestAlternatives int     `koanf:"fastest_alternatives" validate:"min=1,max=3"`
	MaxCandidates       int     `koanf:"max_candidates" validate:"min=1"`
	DistinctKm          float64 `koanf:"distinct_km" validate:"gte=0"`
	MaxDetourRatio      float64 `koanf:"max_detour_ratio" validate:"gt=1"`
}

// ProvidersConfig holds external provider credentials and endpoints.
// An empty BaseURL selects the provider's public API.
type ProvidersConfig struct {
	OpenWeatherMap   ProviderConfig `koanf:"openweathermap"`
	OpenRouteService ProviderConfig `koanf:"openrouteservice"`

	// TomTom is optional; without a key routes carry unknown traffic.
	TomTom ProviderConfig `koanf:"tomtom"`

	// PointTimeout bounds a single exposure or traffic lookup.
	PointTimeout time.Duration `koanf:"point_timeout" validate:"gt=0"`
}

// ProviderConfig is one provider's credentials and endpoint.
type ProviderConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// CacheConfig configures the provider caches.
type CacheConfig struct {
	ExposureTTL      time.Duration `koanf:"exposure_ttl" validate:"gt=0"`
	ExposureStaleTTL time.Duration `koanf:"exposure_stale_ttl" validate:"gtefield=ExposureTTL"`
	ExposureGridSize float64       `koanf:"exposure_grid_size" validate:"gt=0,lte=1"`
	ExposureSize     int           `koanf:"exposure_size" validate:"min=1"`
	RoutingTTL       time.Duration `koanf:"routing_ttl" validate:"gt=0"`
	RoutingSize      int           `koanf:"routing_size" validate:"min=1"`
	GeocodingTTL     time.Duration `koanf:"geocoding_ttl" validate:"gt=0"`
	GeocodingSize    int           `koanf:"geocoding_size" validate:"min=1"`
	WeatherTTL       time.Duration `koanf:"weather_ttl" validate:"gt=0"`
	WeatherStaleTTL  time.Duration `koanf:"weather_stale_ttl" validate:"gtefield=WeatherTTL"`
	WeatherSize      int           `koanf:"weather_size" validate:"min=1"`
	ForecastTimezone string        `koanf:"forecast_timezone" validate:"timezone"`
}

// PubSubConfig configures the worker's Pub/Sub trigger.
type PubSubConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ProjectID    string `koanf:"project_id" validate:"required_if=Enabled true"`
	Subscription string `koanf:"subscription" validate:"required_if=Enabled true"`
}

// WorkerConfig configures the regional exposure refresh.
type WorkerConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	Kinds    []string      `koanf:"kinds" validate:"min=1,dive,oneof=states cities"`
}

// Preference model kinds.
const (
	ModelNone   = "none"
	ModelRule   = "rule"
	ModelLinear = "linear"
	ModelRemote = "remote"
)

// ModelConfig selects the preference model used to adjust recommendations.
type ModelConfig struct {
	Kind string `koanf:"kind" validate:"oneof=none rule linear remote"`

	// Path is the coefficients file for the linear model.
	Path string `koanf:"path" validate:"required_if=Kind linear"`

	// URL is the inference service for the remote model.
	URL     string        `koanf:"url" validate:"required_if=Kind remote,omitempty,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`

	// Confidence is the rule model's confidence in its pick.
	Confidence float64 `koanf:"confidence" validate:"gt=0,lte=1"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool          `koanf:"enabled"`
	OTLPEndpoint   string        `koanf:"otlp_endpoint" validate:"required_if=Enabled true"`
	Insecure       bool          `koanf:"insecure"`
	SampleRatio    float64       `koanf:"sample_ratio" validate:"gte=0,lte=1"`
	MetricInterval time.Duration `koanf:"metric_interval" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 60,
				Window:   time.Minute,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			PoolWidth:           20,
			TaskTimeout:         5 * time.Second,
			ExposureIntervalKm:  10,
			TrafficIntervalKm:   20,
			TrafficMaxSamples:   5,
			TrafficCandidates:   2,
			FastestAlternatives: 2,
			MaxCandidates:       3,
			DistinctKm:          0.1,
			MaxDetourRatio:      2,
		},
		Providers: ProvidersConfig{
			PointTimeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			ExposureTTL:      15 * time.Minute,
			ExposureStaleTTL: time.Hour,
			ExposureGridSize: 0.01,
			ExposureSize:     4096,
			RoutingTTL:       5 * time.Minute,
			RoutingSize:      1024,
			GeocodingTTL:     24 * time.Hour,
			GeocodingSize:    1024,
			WeatherTTL:       10 * time.Minute,
			WeatherStaleTTL:  time.Hour,
			WeatherSize:      512,
			ForecastTimezone: "Asia/Kolkata",
		},
		Database: database.DefaultConfig(),
		Worker: WorkerConfig{
			Interval: 15 * time.Minute,
			Kinds:    []string{"states", "cities"},
		},
		Model: ModelConfig{
			Kind:       ModelRule,
			Timeout:    2 * time.Second,
			Confidence: 0.8,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:   "localhost:4317",
			Insecure:       true,
			SampleRatio:    1,
			MetricInterval: 15 * time.Second,
		},
	}
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location returns the time zone used for calendar days in forecasts.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Cache.ForecastTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
