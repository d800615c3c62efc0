// Package main provides the entrypoint for the breathway API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/breathway/breathway/internal/airquality"
	aqowm "github.com/breathway/breathway/internal/airquality/openweathermap"
	"github.com/breathway/breathway/internal/api"
	"github.com/breathway/breathway/internal/api/handler"
	"github.com/breathway/breathway/internal/api/middleware"
	"github.com/breathway/breathway/internal/config"
	"github.com/breathway/breathway/internal/database"
	"github.com/breathway/breathway/internal/geocoding"
	geoowm "github.com/breathway/breathway/internal/geocoding/openweathermap"
	"github.com/breathway/breathway/internal/history"
	"github.com/breathway/breathway/internal/metrics"
	"github.com/breathway/breathway/internal/preference"
	"github.com/breathway/breathway/internal/provider/resilience"
	"github.com/breathway/breathway/internal/ranking"
	"github.com/breathway/breathway/internal/routing"
	"github.com/breathway/breathway/internal/routing/openrouteservice"
	"github.com/breathway/breathway/internal/telemetry"
	"github.com/breathway/breathway/internal/traffic"
	"github.com/breathway/breathway/internal/traffic/tomtom"
	"github.com/breathway/breathway/internal/weather"
	wxowm "github.com/breathway/breathway/internal/weather/openweathermap"
	"github.com/breathway/breathway/internal/worker"
	"github.com/breathway/breathway/internal/workpool"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "breathway-api"

func main() {
	cfg, err := config.Load(config.Options{DotEnv: []string{".env"}})
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting breathway API")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		MetricInterval: cfg.Telemetry.MetricInterval,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	httpMetrics, err := middleware.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}

	registry := resilience.NewRegistry()
	m := metrics.New()
	pool := workpool.New(workpool.Config{
		Width:       cfg.Engine.PoolWidth,
		TaskTimeout: cfg.Engine.TaskTimeout,
	})

	// Air quality
	aqService, err := airquality.NewService(airquality.ServiceConfig{
		Provider: aqowm.NewClient(aqowm.ClientConfig{
			APIKey:   cfg.Providers.OpenWeatherMap.APIKey,
			BaseURL:  cfg.Providers.OpenWeatherMap.BaseURL,
			Timeout:  cfg.Providers.PointTimeout,
			Registry: registry,
			Logger:   log,
		}),
		Logger:          log,
		Metrics:         m,
		CacheTTL:        cfg.Cache.ExposureTTL,
		StaleIfErrorTTL: cfg.Cache.ExposureStaleTTL,
		CacheGridSize:   cfg.Cache.ExposureGridSize,
		CacheSize:       cfg.Cache.ExposureSize,
	})
	if err != nil {
		return err
	}

	// Routing
	routingService, err := routing.NewService(routing.ServiceConfig{
		Provider: openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.Providers.OpenRouteService.APIKey,
			BaseURL:  cfg.Providers.OpenRouteService.BaseURL,
			Timeout:  cfg.Providers.OpenRouteService.Timeout,
			Registry: registry,
			Logger:   log,
		}),
		Logger:    log,
		Metrics:   m,
		CacheTTL:  cfg.Cache.RoutingTTL,
		CacheSize: cfg.Cache.RoutingSize,
	})
	if err != nil {
		return err
	}

	// Geocoding
	geocoder, err := geocoding.NewService(geocoding.ServiceConfig{
		Provider: geoowm.NewClient(geoowm.ClientConfig{
			APIKey:   cfg.Providers.OpenWeatherMap.APIKey,
			BaseURL:  cfg.Providers.OpenWeatherMap.BaseURL,
			Timeout:  cfg.Providers.OpenWeatherMap.Timeout,
			Registry: registry,
			Logger:   log,
		}),
		Logger:    log,
		Metrics:   m,
		CacheSize: cfg.Cache.GeocodingSize,
		CacheTTL:  cfg.Cache.GeocodingTTL,
	})
	if err != nil {
		return err
	}

	// Weather
	weatherService, err := weather.NewService(weather.ServiceConfig{
		Provider: wxowm.NewClient(wxowm.ClientConfig{
			APIKey:   cfg.Providers.OpenWeatherMap.APIKey,
			BaseURL:  cfg.Providers.OpenWeatherMap.BaseURL,
			Timeout:  cfg.Providers.OpenWeatherMap.Timeout,
			Registry: registry,
			Logger:   log,
		}),
		AirQuality:      aqService,
		Logger:          log,
		Metrics:         m,
		CacheTTL:        cfg.Cache.WeatherTTL,
		StaleIfErrorTTL: cfg.Cache.WeatherStaleTTL,
		CacheSize:       cfg.Cache.WeatherSize,
		Location:        cfg.Location(),
	})
	if err != nil {
		return err
	}

	// Ranking
	model, err := newPreferenceModel(cfg.Model, registry, log)
	if err != nil {
		return err
	}

	engineCfg := ranking.EngineConfig{
		Candidates: routing.NewGenerator(routing.GeneratorConfig{
			Directions:          routingService,
			Logger:              log,
			Metrics:             m,
			FastestAlternatives: cfg.Engine.FastestAlternatives,
			DistinctKm:          cfg.Engine.DistinctKm,
			MaxDetourRatio:      cfg.Engine.MaxDetourRatio,
			MaxCandidates:       cfg.Engine.MaxCandidates,
		}),
		Points: aqService,
		Exposure: airquality.NewEstimator(airquality.EstimatorConfig{
			Source:     aqService,
			Pool:       pool,
			Logger:     log,
			IntervalKm: cfg.Engine.ExposureIntervalKm,
		}),
		Pool:              pool,
		Model:             model,
		Metrics:           m,
		Logger:            log,
		TrafficCandidates: cfg.Engine.TrafficCandidates,
	}
	if tt := cfg.Providers.TomTom; tt.APIKey != "" {
		engineCfg.Traffic = traffic.NewEstimator(traffic.EstimatorConfig{
			Provider: tomtom.NewClient(tomtom.ClientConfig{
				APIKey:   tt.APIKey,
				BaseURL:  tt.BaseURL,
				Timeout:  cfg.Providers.PointTimeout,
				Registry: registry,
				Logger:   log,
			}),
			Pool:       pool,
			Metrics:    m,
			Logger:     log,
			IntervalKm: cfg.Engine.TrafficIntervalKm,
			MaxSamples: cfg.Engine.TrafficMaxSamples,
		})
	} else {
		log.Warn().Msg("TomTom not configured - routes will carry unknown traffic")
	}
	engine := ranking.NewEngine(engineCfg)

	// History
	readiness := map[string]handler.ReadinessCheck{}
	var repo history.Repository = history.NewInMemoryRepository()
	if cfg.Database.Enabled {
		dbPool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer dbPool.Close()
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")

		pgRepo := history.NewPostgresRepository(dbPool)
		if cfg.Database.Migrate {
			if err := pgRepo.Migrate(ctx); err != nil {
				return err
			}
			log.Info().Msg("history schema migrated")
		}
		repo = pgRepo
		readiness["database"] = database.Check(dbPool)
	} else {
		log.Warn().Msg("database disabled - trip history is kept in memory")
	}
	historyService := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     log,
	})

	// Regional exposure
	refresh := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: refreshConfig(cfg.Worker),
		Source: aqService,
		Pool:   pool,
		Logger: log,
	})
	go refresh.Start(ctx)

	var rateLimit *middleware.RateLimitConfig
	if rl := cfg.Server.RateLimit; rl.Enabled {
		rateLimit = &middleware.RateLimitConfig{RequestLimit: rl.Requests, WindowLength: rl.Window}
	}

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		HTTPMetrics:     httpMetrics,
		MetricsHandler:  m.Handler(),
		RateLimit:       rateLimit,
		RequireTLS:      cfg.IsProduction(),
		Ranker:          engine,
		Places:          geocoder,
		Exposure:        aqService,
		Weather:         weatherService,
		History:         historyService,
		Regions:         refresh,
		Providers:       registry,
		ReadinessChecks: readiness,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Log.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}

// newPreferenceModel returns the configured model, or nil for "none".
func newPreferenceModel(cfg config.ModelConfig, registry *resilience.Registry, log zerolog.Logger) (ranking.PreferenceModel, error) {
	switch cfg.Kind {
	case config.ModelRule:
		return &preference.RuleModel{Confidence: cfg.Confidence}, nil
	case config.ModelLinear:
		m, err := preference.LoadLinearModel(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("version", m.Version()).Msg("linear preference model loaded")
		return m, nil
	case config.ModelRemote:
		return preference.NewRemoteModel(preference.RemoteConfig{
			BaseURL:  cfg.URL,
			Timeout:  cfg.Timeout,
			Registry: registry,
			Logger:   log,
		}), nil
	default:
		return nil, nil
	}
}

func refreshConfig(cfg config.WorkerConfig) worker.RefreshConfig {
	kinds := make([]worker.Kind, 0, len(cfg.Kinds))
	for _, k := range cfg.Kinds {
		kinds = append(kinds, worker.Kind(k))
	}
	return worker.RefreshConfig{Kinds: kinds, Interval: cfg.Interval}
}
