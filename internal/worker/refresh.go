package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/workpool"
)

// ReadingSource supplies point air quality readings.
type ReadingSource interface {
	GetReading(ctx context.Context, lat, lon float64) (*airquality.Reading, error)
}

// RegionExposure is the latest exposure of one region.
type RegionExposure struct {
	Region     Region
	Index      airquality.Index
	Band       airquality.Band
	Pollutant  airquality.Pollutant
	MeasuredAt time.Time
}

// Snapshot is the latest refresh of one region table. Regions whose lookup
// failed are left out.
type Snapshot struct {
	Kind        Kind
	Regions     []RegionExposure
	Failed      int
	RefreshedAt time.Time
}

// RefreshJob keeps regional exposure snapshots current.
type RefreshJob struct {
	config RefreshConfig
	source ReadingSource
	pool   *workpool.Pool
	logger zerolog.Logger

	mu        sync.RWMutex
	snapshots map[Kind]*Snapshot
	metrics   RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	TotalRefreshes      int64
	SuccessfulLookups   int64
	FailedLookups       int64
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Source ReadingSource

	// Pool runs the lookups (default: a new pool).
	Pool *workpool.Pool

	Logger zerolog.Logger
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	defaults := DefaultRefreshConfig()
	if len(config.Kinds) == 0 {
		config.Kinds = defaults.Kinds
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}

	pool := cfg.Pool
	if pool == nil {
		pool = workpool.New(workpool.Config{})
	}

	return &RefreshJob{
		config:    config,
		source:    cfg.Source,
		pool:      pool,
		logger:    cfg.Logger,
		snapshots: make(map[Kind]*Snapshot),
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Successful  int
	Failed      int
	Errors      []RefreshError
}

// RefreshError represents a failed region lookup.
type RefreshError struct {
	Kind   Kind
	Region string
	Error  string
}

// Run refreshes every configured region table.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	start := time.Now()
	result := &RefreshResult{StartTime: start}

	j.logger.Info().
		Int("tables", len(j.config.Kinds)).
		Int("pool_width", j.pool.Width()).
		Msg("starting regional exposure refresh")

	for _, kind := range j.config.Kinds {
		snap, errs := j.refresh(ctx, kind)
		result.TotalPoints += len(snap.Regions) + snap.Failed
		result.Successful += len(snap.Regions)
		result.Failed += snap.Failed
		result.Errors = append(result.Errors, errs...)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("regional exposure refresh completed")

	return result
}

// RefreshKind refreshes one region table and returns its new snapshot.
func (j *RefreshJob) RefreshKind(ctx context.Context, kind Kind) (*Snapshot, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown region kind %q", kind)
	}
	snap, _ := j.refresh(ctx, kind)
	return snap, nil
}

// Snapshot returns the latest snapshot for kind, if one exists.
func (j *RefreshJob) Snapshot(kind Kind) (*Snapshot, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s, ok := j.snapshots[kind]
	return s, ok
}

// Start runs a refresh immediately and then every interval until ctx is done.
func (j *RefreshJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *RefreshJob) refresh(ctx context.Context, kind Kind) (*Snapshot, []RefreshError) {
	regions := Regions(kind)
	results := workpool.Map(ctx, j.pool, regions, func(ctx context.Context, r Region) (*airquality.Reading, error) {
		return j.source.GetReading(ctx, r.Point.Lat, r.Point.Lon)
	})

	snap := &Snapshot{Kind: kind, Regions: make([]RegionExposure, 0, len(regions))}
	var errs []RefreshError
	for i, res := range results {
		if !res.OK() {
			snap.Failed++
			errs = append(errs, RefreshError{Kind: kind, Region: regions[i].Name, Error: res.Err.Error()})
			j.logger.Debug().
				Err(res.Err).
				Str("region", regions[i].Name).
				Msg("region exposure lookup failed")
			continue
		}
		snap.Regions = append(snap.Regions, regionExposure(regions[i], res.Value))
	}
	snap.RefreshedAt = time.Now()

	j.mu.Lock()
	j.snapshots[kind] = snap
	j.mu.Unlock()

	return snap, errs
}

func regionExposure(r Region, reading *airquality.Reading) RegionExposure {
	pollutant := airquality.PollutantPM25
	if reading.Components != nil {
		pollutant = reading.Components.Dominant()
	}
	return RegionExposure{
		Region:     r,
		Index:      reading.Index,
		Band:       airquality.BandFor(reading.Index),
		Pollutant:  pollutant,
		MeasuredAt: reading.MeasuredAt,
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulLookups += int64(result.Successful)
	j.metrics.FailedLookups += int64(result.Failed)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}
