package handler_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/api/models"
	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/geocoding"
	"github.com/breathway/breathway/internal/history"
	"github.com/breathway/breathway/internal/ranking"
	"github.com/breathway/breathway/internal/routing"
	"github.com/breathway/breathway/internal/weather"
	"github.com/breathway/breathway/internal/worker"
)

var (
	connaughtPlace = geo.Point{Lat: 28.6315, Lon: 77.2167}
	cyberCity      = geo.Point{Lat: 28.4950, Lon: 77.0895}
	fixedNow       = time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC)
)

type fakePlaces struct {
	places map[string]*geocoding.Place
	err    error
	calls  atomic.Int32
}

func (f *fakePlaces) Resolve(_ context.Context, name string) (*geocoding.Place, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(name) == "" {
		return nil, geocoding.ErrEmptyQuery
	}
	p, ok := f.places[strings.ToLower(name)]
	if !ok {
		return nil, geocoding.ErrNotFound
	}
	return p, nil
}

func defaultPlaces() *fakePlaces {
	return &fakePlaces{places: map[string]*geocoding.Place{
		"connaught place": {Name: "Connaught Place", State: "Delhi", Country: "IN", Point: connaughtPlace},
		"cyber city":      {Name: "Cyber City", State: "Haryana", Country: "IN", Point: cyberCity},
	}}
}

type fakeRanker struct {
	result *ranking.Result
	err    error

	mu      sync.Mutex
	origin  geo.Point
	dest    geo.Point
	profile routing.Profile
}

func (f *fakeRanker) RankRoutes(_ context.Context, origin, dest geo.Point, profile routing.Profile) (*ranking.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.origin, f.dest, f.profile = origin, dest, profile
	return f.result, f.err
}

func rankedResult() *ranking.Result {
	line := geo.Path{connaughtPlace, geo.Midpoint(connaughtPlace, cyberCity), cyberCity}
	return &ranking.Result{
		Candidates: []ranking.Candidate{
			{
				Candidate:           routing.Candidate{Geometry: line, DistanceKm: 24.1, DurationMin: 42, Summary: "NH48", Strategy: routing.StrategyFastest},
				AdjustedDurationMin: 42,
				Exposure:            180,
				Label:               ranking.ObjectiveFastest,
				Cost:                61.2,
			},
			{
				Candidate:           routing.Candidate{Geometry: line, DistanceKm: 27.5, DurationMin: 51, Strategy: routing.StrategyDetour},
				AdjustedDurationMin: 51,
				Exposure:            95,
				Label:               ranking.ObjectiveCleanest,
				Cost:                40.3,
				Preference: &ranking.Prediction{
					Objective:    ranking.ObjectiveCleanest,
					Distribution: map[ranking.Objective]float64{ranking.ObjectiveFastest: 0.2, ranking.ObjectiveCleanest: 0.7, ranking.ObjectiveBalanced: 0.1},
				},
			},
		},
		RecommendedIndex:     1,
		RecommendationSource: ranking.SourceModel,
	}
}

type fakeExposure struct {
	values map[geo.Point]airquality.Index
}

func (f *fakeExposure) ExposureAt(_ context.Context, p geo.Point) (airquality.Index, error) {
	if v, ok := f.values[p]; ok {
		return v, nil
	}
	return 0, airquality.ErrProviderUnavailable
}

type fakeHistory struct {
	mu      sync.Mutex
	records []*history.Record
	err     error
}

func (f *fakeHistory) Record(_ context.Context, userID string, origin, dest history.Endpoint, profile routing.Profile, res *ranking.Result) (*history.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec := res.Recommended()
	r := &history.Record{
		ID:             "rte_test",
		UserID:         userID,
		Origin:         origin,
		Destination:    dest,
		Profile:        string(profile),
		DistanceKm:     rec.DistanceKm,
		DurationMin:    rec.DurationMin,
		Exposure:       rec.Exposure,
		Label:          string(rec.Label),
		Source:         string(res.RecommendationSource),
		CandidateCount: len(res.Candidates),
		CreatedAt:      fixedNow,
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return r, nil
}

func (f *fakeHistory) List(_ context.Context, userID string, _ int) ([]*history.Record, error) {
	if userID == "" {
		return nil, history.ErrMissingUserID
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, nil
}

func (f *fakeHistory) ExportCSV(ctx context.Context, userID string, w io.Writer) error {
	records, err := f.List(ctx, userID, 0)
	if err != nil {
		return err
	}
	_, _ = io.WriteString(w, "Date,Origin,Destination\n")
	for _, r := range records {
		_, _ = io.WriteString(w, r.CreatedAt.Format(time.DateOnly)+","+r.Origin.Name+","+r.Destination.Name+"\n")
	}
	return nil
}

type fakeWeather struct {
	conditions *weather.Conditions
	days       []weather.DailySummary
	err        error
}

func (f *fakeWeather) Conditions(context.Context, float64, float64) (*weather.Conditions, error) {
	return f.conditions, f.err
}

func (f *fakeWeather) DailyForecast(context.Context, float64, float64) ([]weather.DailySummary, error) {
	return f.days, f.err
}

type fakeRegions struct {
	snapshots map[worker.Kind]*worker.Snapshot
	refreshed *worker.Snapshot
	refreshes atomic.Int32
}

func (f *fakeRegions) Snapshot(kind worker.Kind) (*worker.Snapshot, bool) {
	s, ok := f.snapshots[kind]
	return s, ok
}

func (f *fakeRegions) RefreshKind(_ context.Context, kind worker.Kind) (*worker.Snapshot, error) {
	f.refreshes.Add(1)
	s := *f.refreshed
	s.Kind = kind
	return &s, nil
}

// serve routes a single request through a chi router so URL params resolve.
func serve(t *testing.T, method, pattern, target string, body any, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	return decode[models.Problem](t, rec)
}
