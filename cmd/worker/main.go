// Package main provides the entrypoint for the breathway regional exposure worker.
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

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/airquality"
	aqowm "github.com/breathway/breathway/internal/airquality/openweathermap"
	"github.com/breathway/breathway/internal/api/handler"
	"github.com/breathway/breathway/internal/config"
	"github.com/breathway/breathway/internal/metrics"
	"github.com/breathway/breathway/internal/provider/resilience"
	"github.com/breathway/breathway/internal/telemetry"
	"github.com/breathway/breathway/internal/worker"
	"github.com/breathway/breathway/internal/workpool"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "breathway-worker"

func main() {
	cfg, err := config.Load(config.Options{DotEnv: []string{".env"}})
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting breathway worker")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker error")
	}
	log.Info().Msg("worker stopped")
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

	registry := resilience.NewRegistry()
	m := metrics.New()

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

	kinds := make([]worker.Kind, 0, len(cfg.Worker.Kinds))
	for _, k := range cfg.Worker.Kinds {
		kinds = append(kinds, worker.Kind(k))
	}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Kinds: kinds, Interval: cfg.Worker.Interval},
		Source: aqService,
		Pool: workpool.New(workpool.Config{
			Width:       cfg.Engine.PoolWidth,
			TaskTimeout: cfg.Engine.TaskTimeout,
		}),
		Logger: log,
	})

	// Health and metrics for the platform probes.
	ops := handler.NewOpsHandler(Version, BuildTime, nil, registry)
	r := chi.NewRouter()
	r.Get("/health", ops.HealthCheck)
	r.Get("/providers", ops.ProviderStatus)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSub.Enabled {
		h, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := h.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		if err := h.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pubsub receive stopped")
		}
	} else {
		log.Info().
			Dur("interval", cfg.Worker.Interval).
			Msg("pubsub disabled - refreshing on a timer")
		job.Start(ctx)
	}

	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
