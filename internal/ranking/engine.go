package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/metrics"
	"github.com/breathway/breathway/internal/routing"
	"github.com/breathway/breathway/internal/traffic"
	"github.com/breathway/breathway/internal/workpool"
)

const tracerName = "github.com/breathway/breathway/internal/ranking"

// DefaultTrafficCandidates is the number of leading candidates that get a
// traffic estimate.
const DefaultTrafficCandidates = 2

// CandidateSource generates raw route candidates.
type CandidateSource interface {
	Generate(ctx context.Context, origin, dest geo.Point, profile routing.Profile) ([]routing.Candidate, error)
}

// RouteExposure estimates exposure along a path.
type RouteExposure interface {
	Estimate(ctx context.Context, path geo.Path, start, end airquality.Index) airquality.Index
}

// RouteTraffic estimates traffic along a path.
type RouteTraffic interface {
	Estimate(ctx context.Context, path geo.Path) traffic.Summary
}

// EngineConfig holds the engine's collaborators.
type EngineConfig struct {
	Candidates CandidateSource
	Points     airquality.PointSource
	Exposure   RouteExposure

	// Traffic is optional; without it every candidate has unknown traffic.
	Traffic RouteTraffic

	// Pool runs the endpoint exposure lookups.
	Pool *workpool.Pool

	// Model adjusts the recommendation when set.
	Model PreferenceModel

	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	// Now returns the time used for model features (default: time.Now).
	Now func() time.Time

	// Tracer for spans (default: global otel tracer).
	Tracer trace.Tracer

	// TrafficCandidates limits traffic estimation to the first N candidates (default: 2).
	TrafficCandidates int
}

// Engine produces ranked routes between two points.
type Engine struct {
	candidates        CandidateSource
	points            airquality.PointSource
	exposure          RouteExposure
	traffic           RouteTraffic
	pool              *workpool.Pool
	scorer            *Scorer
	metrics           *metrics.Metrics
	logger            zerolog.Logger
	now               func() time.Time
	tracer            trace.Tracer
	trafficCandidates int
}

// NewEngine creates an engine.
func NewEngine(cfg EngineConfig) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	pool := cfg.Pool
	if pool == nil {
		pool = workpool.New(workpool.Config{})
	}
	tc := cfg.TrafficCandidates
	if tc <= 0 {
		tc = DefaultTrafficCandidates
	}

	return &Engine{
		candidates:        cfg.Candidates,
		points:            cfg.Points,
		exposure:          cfg.Exposure,
		traffic:           cfg.Traffic,
		pool:              pool,
		scorer:            NewScorer(ScorerConfig{Model: cfg.Model, Logger: cfg.Logger}),
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
		now:               now,
		tracer:            tracer,
		trafficCandidates: tc,
	}
}

// RankRoutes generates candidates between origin and dest, estimates the
// exposure and traffic of each and returns them scored. It fails with
// routing.ErrNoRouteFound when no candidate exists and with
// airquality.ErrProviderUnavailable when neither endpoint exposure is known.
func (e *Engine) RankRoutes(ctx context.Context, origin, dest geo.Point, profile routing.Profile) (result *Result, err error) {
	ctx, span := e.tracer.Start(ctx, "ranking.RankRoutes",
		trace.WithAttributes(
			attribute.String("route.profile", string(profile)),
			attribute.Float64("route.origin.lat", origin.Lat),
			attribute.Float64("route.origin.lon", origin.Lon),
			attribute.Float64("route.destination.lat", dest.Lat),
			attribute.Float64("route.destination.lon", dest.Lon),
		),
	)
	start := time.Now()
	defer func() {
		e.metrics.RankDuration(time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	if err := dest.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	// Endpoint exposures run alongside candidate generation.
	var (
		endpoints []workpool.Result[airquality.Index]
		wg        sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		endpoints = workpool.Map(ctx, e.pool, []geo.Point{origin, dest}, e.points.ExposureAt)
	}()

	raw, genErr := e.candidates.Generate(ctx, origin, dest, profile)
	wg.Wait()
	if genErr != nil {
		return nil, genErr
	}

	startIdx, endIdx, err := e.endpointExposure(endpoints)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("route.candidates", len(raw)))

	cs := e.enrich(ctx, raw, startIdx, endIdx)
	res := e.scorer.Score(ctx, cs, e.now())
	e.metrics.Recommendation(string(res.RecommendationSource))

	span.SetAttributes(
		attribute.Int("route.recommended", res.RecommendedIndex),
		attribute.String("route.recommendation_source", string(res.RecommendationSource)),
	)

	e.logger.Info().
		Int("candidates", len(cs)).
		Int("recommended", res.RecommendedIndex).
		Str("source", string(res.RecommendationSource)).
		Dur("elapsed", time.Since(start)).
		Msg("ranked routes")

	return &res, nil
}

// endpointExposure substitutes one endpoint's value for the other when a
// lookup failed.
func (e *Engine) endpointExposure(rs []workpool.Result[airquality.Index]) (airquality.Index, airquality.Index, error) {
	o, d := rs[0], rs[1]
	switch {
	case o.OK() && d.OK():
		return o.Value, d.Value, nil
	case o.OK():
		e.logger.Warn().Err(d.Err).Msg("destination exposure unavailable, using origin value")
		return o.Value, o.Value, nil
	case d.OK():
		e.logger.Warn().Err(o.Err).Msg("origin exposure unavailable, using destination value")
		return d.Value, d.Value, nil
	default:
		err := errors.Join(o.Err, d.Err)
		if !errors.Is(err, airquality.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %w", airquality.ErrProviderUnavailable, err)
		}
		return 0, 0, fmt.Errorf("endpoint exposure: %w", err)
	}
}

// enrich estimates exposure and traffic for every candidate concurrently.
// Candidates fan out on plain goroutines; their point lookups share the pool.
func (e *Engine) enrich(ctx context.Context, raw []routing.Candidate, start, end airquality.Index) []Candidate {
	cs := make([]Candidate, len(raw))

	var wg sync.WaitGroup
	for i := range raw {
		cs[i] = Candidate{Candidate: raw[i], AdjustedDurationMin: raw[i].DurationMin}
		c := &cs[i]

		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Exposure = e.exposure.Estimate(ctx, c.Geometry, start, end)
		}()

		if e.traffic == nil || i >= e.trafficCandidates {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary := e.traffic.Estimate(ctx, c.Geometry)
			c.Traffic = &summary
			c.AdjustedDurationMin = traffic.AdjustedDuration(c.DurationMin, summary)
		}()
	}
	wg.Wait()

	return cs
}
