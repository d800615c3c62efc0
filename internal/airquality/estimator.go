package airquality

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/workpool"
)

// DefaultSampleIntervalKm is the spacing of exposure lookups along a route.
const DefaultSampleIntervalKm = 10.0

// PointSource returns the exposure index at a single point.
type PointSource interface {
	ExposureAt(ctx context.Context, p geo.Point) (Index, error)
}

// EstimatorConfig holds configuration for the route exposure estimator.
type EstimatorConfig struct {
	Source PointSource
	Pool   *workpool.Pool
	Logger zerolog.Logger

	// IntervalKm is the sampling spacing (default: 10 km).
	IntervalKm float64
}

// Estimator aggregates point exposure along a route.
type Estimator struct {
	source     PointSource
	pool       *workpool.Pool
	logger     zerolog.Logger
	intervalKm float64
}

// NewEstimator creates an exposure estimator.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	interval := cfg.IntervalKm
	if interval <= 0 {
		interval = DefaultSampleIntervalKm
	}
	pool := cfg.Pool
	if pool == nil {
		pool = workpool.New(workpool.Config{})
	}
	return &Estimator{
		source:     cfg.Source,
		pool:       pool,
		logger:     cfg.Logger,
		intervalKm: interval,
	}
}

// Estimate returns the mean exposure over the route's endpoints and its
// interior sample points. Interior lookups run concurrently on the pool; a
// failed lookup is left out of the mean. With no usable interior sample the
// result is the average of the two endpoint values.
func (e *Estimator) Estimate(ctx context.Context, path geo.Path, start, end Index) Index {
	interior := geo.Interior(geo.Sample(path, e.intervalKm))
	if len(interior) == 0 {
		return endpointAverage(start, end)
	}

	results := workpool.Map(ctx, e.pool, interior, func(ctx context.Context, sp geo.SampledPoint) (Index, error) {
		return e.source.ExposureAt(ctx, sp.Point)
	})

	sum := float64(start) + float64(end)
	n := 2
	for i, r := range results {
		if r.Err != nil {
			e.logger.Debug().
				Err(r.Err).
				Float64("lat", interior[i].Lat).
				Float64("lon", interior[i].Lon).
				Float64("km", interior[i].CumulativeKm).
				Msg("dropping exposure sample")
			continue
		}
		sum += float64(r.Value)
		n++
	}

	if n == 2 {
		e.logger.Warn().
			Int("samples", len(interior)).
			Msg("all exposure samples failed, using endpoint average")
	}

	return IndexFromFloat(sum / float64(n))
}

func endpointAverage(start, end Index) Index {
	return IndexFromFloat(float64(start+end) / 2)
}
