// Package api provides the HTTP API for breathway.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/api/handler"
	"github.com/breathway/breathway/internal/api/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// HTTPMetrics records OpenTelemetry request metrics (optional).
	HTTPMetrics *middleware.Metrics

	// MetricsHandler serves the Prometheus scrape endpoint (optional).
	MetricsHandler http.Handler

	// RateLimit is applied per client IP to /v1 routes; nil disables it.
	RateLimit  *middleware.RateLimitConfig
	RequireTLS bool

	Ranker    handler.Ranker
	Places    handler.PlaceResolver
	Exposure  handler.ExposureLookup
	Weather   handler.WeatherSource
	History   HistoryService
	Regions   handler.RegionSource
	Providers handler.ProviderHealthSource

	ReadinessChecks map[string]handler.ReadinessCheck
}

// HistoryService records, lists and exports trips.
type HistoryService interface {
	handler.TripRecorder
	handler.HistoryStore
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "breathway-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ReadinessChecks, cfg.Providers)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints are exempt from rate limiting so probes never see 429.
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/providers", opsHandler.ProviderStatus)
		})

		r.Group(func(r chi.Router) {
			if cfg.RateLimit != nil {
				r.Use(middleware.RateLimitByIP(*cfg.RateLimit))
			}

			if cfg.Ranker != nil && cfg.Places != nil {
				rc := handler.RouteHandlerConfig{
					Ranker:   cfg.Ranker,
					Places:   cfg.Places,
					Exposure: cfg.Exposure,
					Logger:   cfg.Logger,
				}
				if cfg.History != nil {
					rc.History = cfg.History
				}
				routeHandler := handler.NewRouteHandler(rc)
				r.With(middleware.RequireJSON).Post("/routes:rank", routeHandler.RankRoutes)
			}

			if cfg.Places != nil && cfg.Weather != nil {
				placeHandler := handler.NewPlaceHandler(cfg.Places, cfg.Weather, cfg.Logger)
				r.Route("/places/{name}", func(r chi.Router) {
					r.Get("/", placeHandler.GetPlace)
					r.Get("/conditions", placeHandler.GetConditions)
					r.Get("/forecast", placeHandler.GetForecast)
				})
			}

			if cfg.History != nil {
				historyHandler := handler.NewHistoryHandler(cfg.History, cfg.Logger)
				r.Route("/history/{userId}", func(r chi.Router) {
					r.Get("/", historyHandler.ListHistory)
					r.Get("/export", historyHandler.ExportHistory)
				})
			}

			if cfg.Regions != nil {
				exposureHandler := handler.NewExposureHandler(cfg.Regions, cfg.Logger)
				r.Get("/exposure/regions", exposureHandler.ListRegions)
			}
		})
	})

	return r
}
