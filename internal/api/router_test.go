package api_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/api"
	"github.com/breathway/breathway/internal/api/handler"
	"github.com/breathway/breathway/internal/api/middleware"
	"github.com/breathway/breathway/internal/api/models"
	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/geocoding"
	"github.com/breathway/breathway/internal/history"
	"github.com/breathway/breathway/internal/metrics"
	"github.com/breathway/breathway/internal/ranking"
	"github.com/breathway/breathway/internal/routing"
	"github.com/breathway/breathway/internal/weather"
	"github.com/breathway/breathway/internal/worker"
)

var (
	bandra = geo.Point{Lat: 19.0596, Lon: 72.8295}
	powai  = geo.Point{Lat: 19.1176, Lon: 72.9060}
)

type stubRanker struct{}

func (stubRanker) RankRoutes(_ context.Context, origin, dest geo.Point, _ routing.Profile) (*ranking.Result, error) {
	return &ranking.Result{
		Candidates: []ranking.Candidate{{
			Candidate:           routing.Candidate{Geometry: geo.Path{origin, dest}, DistanceKm: 14.2, DurationMin: 38, Strategy: routing.StrategyFastest},
			AdjustedDurationMin: 38,
			Exposure:            88,
			Label:               ranking.ObjectiveFastest,
		}},
		RecommendationSource: ranking.SourceExposure,
	}, nil
}

type stubPlaces struct{}

func (stubPlaces) Resolve(_ context.Context, name string) (*geocoding.Place, error) {
	switch strings.ToLower(name) {
	case "bandra":
		return &geocoding.Place{Name: "Bandra", State: "Maharashtra", Country: "IN", Point: bandra}, nil
	case "powai":
		return &geocoding.Place{Name: "Powai", State: "Maharashtra", Country: "IN", Point: powai}, nil
	}
	return nil, geocoding.ErrNotFound
}

type stubExposure struct{}

func (stubExposure) ExposureAt(context.Context, geo.Point) (airquality.Index, error) {
	return 72, nil
}

type stubWeather struct{}

func (stubWeather) Conditions(context.Context, float64, float64) (*weather.Conditions, error) {
	return &weather.Conditions{Observation: &weather.Observation{Temperature: 29, WindSpeed: 4, Condition: weather.ConditionClouds}}, nil
}

func (stubWeather) DailyForecast(context.Context, float64, float64) ([]weather.DailySummary, error) {
	return []weather.DailySummary{{Date: "2026-10-15", DayName: "Thursday", Condition: weather.ConditionRain}}, nil
}

type stubRegions struct{}

func (stubRegions) Snapshot(worker.Kind) (*worker.Snapshot, bool) { return nil, false }

func (stubRegions) RefreshKind(_ context.Context, kind worker.Kind) (*worker.Snapshot, error) {
	return &worker.Snapshot{
		Kind: kind,
		Regions: []worker.RegionExposure{{
			Region: worker.Region{Name: "Mumbai", Point: bandra},
			Index:  72,
			Band:   airquality.BandFor(72),
		}},
		RefreshedAt: time.Now(),
	}, nil
}

func newTestRouter(t *testing.T, opts ...func(*api.RouterConfig)) http.Handler {
	t.Helper()
	cfg := api.RouterConfig{
		Version:   "test",
		BuildTime: "2026-01-01T00:00:00Z",
		Logger:    zerolog.New(io.Discard),
		Ranker:    stubRanker{},
		Places:    stubPlaces{},
		Exposure:  stubExposure{},
		Weather:   stubWeather{},
		History: history.NewService(history.ServiceConfig{
			Repository: history.NewInMemoryRepository(),
			Logger:     zerolog.Nop(),
		}),
		Regions:        stubRegions{},
		MetricsHandler: metrics.New().Handler(),
		ReadinessChecks: map[string]handler.ReadinessCheck{
			"regions": func(context.Context) error { return nil },
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return api.NewRouter(cfg)
}

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "198.51.100.7:4242"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Ops(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/v1/ops/health", "/v1/ops/ready", "/v1/ops/providers"} {
		t.Run(path, func(t *testing.T) {
			w := do(router, http.MethodGet, path, "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRouter_RankThenHistory(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/v1/routes:rank",
		`{"origin":{"name":"Bandra"},"destination":{"name":"Powai"},"userId":"u-7"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var ranked models.RankResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ranked))
	require.NotEmpty(t, ranked.HistoryID)
	require.Len(t, ranked.Candidates, 1)

	w = do(router, http.MethodGet, "/v1/history/u-7", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var hist models.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Records, 1)
	assert.Equal(t, ranked.HistoryID, hist.Records[0].ID)
	assert.Equal(t, "Bandra", hist.Records[0].Origin.Name)

	w = do(router, http.MethodGet, "/v1/history/u-7/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Bandra")
}

func TestRouter_RankRejectsNonJSON(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:rank", strings.NewReader("origin=Bandra"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_Places(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		path string
		want int
	}{
		{path: "/v1/places/Bandra", want: http.StatusOK},
		{path: "/v1/places/Bandra/conditions", want: http.StatusOK},
		{path: "/v1/places/Powai/forecast", want: http.StatusOK},
		{path: "/v1/places/Atlantis", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, do(router, http.MethodGet, tt.path, "").Code)
		})
	}
}

func TestRouter_Regions(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodGet, "/v1/exposure/regions?kind=cities", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"cities"`)
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RateLimitSparesOps(t *testing.T) {
	router := newTestRouter(t, func(cfg *api.RouterConfig) {
		cfg.RateLimit = &middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}
	})

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/v1/places/Bandra", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(router, http.MethodGet, "/v1/places/Bandra", "").Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/v1/ops/health", "").Code)
	}
}

func TestRouter_RequireTLS(t *testing.T) {
	router := newTestRouter(t, func(cfg *api.RouterConfig) { cfg.RequireTLS = true })

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_RequestID(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodGet, "/v1/ops/health", "")
	assert.Contains(t, w.Header().Get("X-Request-Id"), "req_")

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/v1/nonexistent", "").Code)
}
