package traffic

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/metrics"
	"github.com/breathway/breathway/internal/workpool"
)

const (
	// DefaultSampleIntervalKm is the spacing of flow lookups along a route.
	DefaultSampleIntervalKm = 20.0

	// DefaultMaxSamples caps the number of flow lookups per route.
	DefaultMaxSamples = 5
)

// EstimatorConfig holds configuration for the traffic estimator.
type EstimatorConfig struct {
	Provider Provider
	Pool     *workpool.Pool
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger

	// IntervalKm is the sampling spacing (default: 20 km).
	IntervalKm float64

	// MaxSamples is the number of leading samples queried (default: 5).
	MaxSamples int
}

// Estimator builds a traffic summary for a route.
type Estimator struct {
	provider   Provider
	pool       *workpool.Pool
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	intervalKm float64
	maxSamples int
}

// NewEstimator creates a traffic estimator.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	interval := cfg.IntervalKm
	if interval <= 0 {
		interval = DefaultSampleIntervalKm
	}
	maxSamples := cfg.MaxSamples
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	pool := cfg.Pool
	if pool == nil {
		pool = workpool.New(workpool.Config{})
	}
	return &Estimator{
		provider:   cfg.Provider,
		pool:       pool,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		intervalKm: interval,
		maxSamples: maxSamples,
	}
}

// Estimate queries flow at the leading sample points of path and summarises
// the delay over free-flow conditions. Failed lookups are dropped.
func (e *Estimator) Estimate(ctx context.Context, path geo.Path) Summary {
	samples := geo.Sample(path, e.intervalKm)
	if len(samples) > e.maxSamples {
		samples = samples[:e.maxSamples]
	}
	if len(samples) == 0 {
		return Unknown
	}

	results := workpool.Map(ctx, e.pool, samples, func(ctx context.Context, sp geo.SampledPoint) (*Flow, error) {
		return e.provider.GetFlow(ctx, sp.Lat, sp.Lon)
	})

	var (
		delaySec  float64
		speedSum  float64
		successes int
	)
	for i, r := range results {
		if r.Err != nil || r.Value == nil {
			e.metrics.ProviderFetch(e.provider.Name(), metrics.OutcomeDropped)
			e.logger.Debug().
				Err(r.Err).
				Float64("lat", samples[i].Lat).
				Float64("lon", samples[i].Lon).
				Msg("dropping traffic sample")
			continue
		}
		e.metrics.ProviderFetch(e.provider.Name(), metrics.OutcomeOK)

		f := r.Value
		successes++
		speedSum += f.CurrentSpeedKmh
		if f.FreeFlowTravelTimeSec > 0 {
			delaySec += math.Max(0, f.CurrentTravelTimeSec-f.FreeFlowTravelTimeSec)
		}
	}

	if successes == 0 {
		return Unknown
	}

	delayMin := round1(delaySec / 60)
	return Summary{
		Status:          StatusForDelay(delayMin),
		DelayMinutes:    delayMin,
		AverageSpeedKmh: round1(speedSum / float64(successes)),
		SampleCount:     successes,
	}
}
