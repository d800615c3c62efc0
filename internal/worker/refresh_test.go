package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/worker"
	"github.com/breathway/breathway/internal/workpool"
)

type fakeSource struct {
	calls atomic.Int32

	mu   sync.Mutex
	fail map[geo.Point]bool
	all  error
}

func (f *fakeSource) GetReading(_ context.Context, lat, lon float64) (*airquality.Reading, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.all != nil {
		return nil, f.all
	}
	if f.fail[geo.Point{Lat: lat, Lon: lon}] {
		return nil, airquality.ErrProviderUnavailable
	}
	if lat > 28 {
		return &airquality.Reading{
			Lat: lat, Lon: lon,
			Index:      320,
			Components: &airquality.Components{PM25: 180, PM10: 260, NO2: 40},
		}, nil
	}
	return &airquality.Reading{Lat: lat, Lon: lon, Index: 45, Category: 1}, nil
}

func newJob(source worker.ReadingSource, kinds ...worker.Kind) *worker.RefreshJob {
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Kinds: kinds},
		Source: source,
		Pool:   workpool.New(workpool.Config{Width: 4, TaskTimeout: time.Second}),
		Logger: zerolog.Nop(),
	})
}

func TestRegions(t *testing.T) {
	assert.Equal(t, worker.StateCapitals(), worker.Regions(worker.KindStates))
	assert.Equal(t, worker.MajorCities(), worker.Regions(worker.KindCities))
	assert.Nil(t, worker.Regions("districts"))

	seen := map[string]bool{}
	for _, r := range worker.StateCapitals() {
		assert.False(t, seen[r.Name], "duplicate state %s", r.Name)
		seen[r.Name] = true
		assert.NotEmpty(t, r.Capital, r.Name)
		assert.NoError(t, r.Point.Validate(), r.Name)
	}
	for _, r := range worker.MajorCities() {
		assert.NoError(t, r.Point.Validate(), r.Name)
	}
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()
	assert.Equal(t, []worker.Kind{worker.KindStates, worker.KindCities}, cfg.Kinds)
	assert.Equal(t, 15*time.Minute, cfg.Interval)
}

func TestRefreshJob_Run(t *testing.T) {
	source := &fakeSource{}
	job := newJob(source)

	result := job.Run(context.Background())

	total := len(worker.StateCapitals()) + len(worker.MajorCities())
	assert.Equal(t, total, result.TotalPoints)
	assert.Equal(t, total, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Equal(t, int32(total), source.calls.Load())

	snap, ok := job.Snapshot(worker.KindCities)
	require.True(t, ok)
	require.Len(t, snap.Regions, len(worker.MajorCities()))

	delhi := snap.Regions[0]
	assert.Equal(t, "Delhi", delhi.Region.Name)
	assert.Equal(t, airquality.Index(320), delhi.Index)
	assert.Equal(t, "Severe", delhi.Band.Name)
	assert.Equal(t, airquality.PollutantPM10, delhi.Pollutant)

	mumbai := snap.Regions[1]
	assert.Equal(t, "Good", mumbai.Band.Name)
	assert.Equal(t, airquality.PollutantPM25, mumbai.Pollutant)

	m := job.GetMetrics()
	assert.Equal(t, int64(1), m.TotalRefreshes)
	assert.Equal(t, int64(total), m.SuccessfulLookups)
}

func TestRefreshJob_FailedRegionsAreDropped(t *testing.T) {
	source := &fakeSource{fail: map[geo.Point]bool{
		{Lat: 19.0760, Lon: 72.8777}: true, // Mumbai
	}}
	job := newJob(source, worker.KindCities)

	result := job.Run(context.Background())
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Mumbai", result.Errors[0].Region)

	snap, ok := job.Snapshot(worker.KindCities)
	require.True(t, ok)
	assert.Equal(t, 1, snap.Failed)
	assert.Len(t, snap.Regions, len(worker.MajorCities())-1)
	for _, r := range snap.Regions {
		assert.NotEqual(t, "Mumbai", r.Region.Name)
	}

	_, ok = job.Snapshot(worker.KindStates)
	assert.False(t, ok)
}

func TestRefreshJob_RefreshKind(t *testing.T) {
	job := newJob(&fakeSource{})

	snap, err := job.RefreshKind(context.Background(), worker.KindStates)
	require.NoError(t, err)
	assert.Equal(t, worker.KindStates, snap.Kind)
	assert.Len(t, snap.Regions, len(worker.StateCapitals()))

	_, err = job.RefreshKind(context.Background(), "districts")
	assert.Error(t, err)
}

func TestRefreshJob_StartStopsWithContext(t *testing.T) {
	source := &fakeSource{}
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{Kinds: []worker.Kind{worker.KindCities}, Interval: 20 * time.Millisecond},
		Source: source,
		Logger: zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return job.GetMetrics().TotalRefreshes >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name    string
		source  *fakeSource
		data    string
		wantErr error
		anyErr  bool
	}{
		{name: "full refresh", source: &fakeSource{}, data: `{"job_type":"exposure_refresh"}`},
		{name: "single table", source: &fakeSource{}, data: `{"job_type":"exposure_refresh","kind":"cities"}`},
		{name: "unknown table", source: &fakeSource{}, data: `{"job_type":"exposure_refresh","kind":"districts"}`, anyErr: true},
		{name: "refresh mostly failing", source: &fakeSource{all: errors.New("down")}, data: `{"job_type":"exposure_refresh"}`, anyErr: true},
		{name: "health check", source: &fakeSource{}, data: `{"job_type":"health_check"}`},
		{name: "health check failing", source: &fakeSource{all: errors.New("down")}, data: `{"job_type":"health_check"}`, anyErr: true},
		{name: "unknown job", source: &fakeSource{}, data: `{"job_type":"reindex"}`, wantErr: worker.ErrUnknownJob},
		{name: "malformed", source: &fakeSource{}, data: `{"job_type":`, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := worker.NewProcessor(newJob(tt.source), zerolog.Nop())
			err := p.Process(context.Background(), []byte(tt.data))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessor_HealthCheckProbesOnePoint(t *testing.T) {
	source := &fakeSource{}
	p := worker.NewProcessor(newJob(source), zerolog.Nop())

	require.NoError(t, p.Process(context.Background(), []byte(`{"job_type":"health_check"}`)))
	assert.Equal(t, int32(1), source.calls.Load())
}
