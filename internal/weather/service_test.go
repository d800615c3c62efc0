package weather_test

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
	"github.com/breathway/breathway/internal/weather"
)

// mockProvider is a mock weather provider for testing.
type mockProvider struct {
	calls    atomic.Int32
	mu       sync.Mutex
	err      error
	delay    time.Duration
	forecast *weather.Forecast
}

func (m *mockProvider) Name() string {
	return "mock"
}

func (m *mockProvider) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockProvider) getError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *mockProvider) GetCurrentWeather(_ context.Context, lat, lon float64) (*weather.Observation, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err := m.getError(); err != nil {
		return nil, err
	}
	return &weather.Observation{
		Lat:          lat,
		Lon:          lon,
		Temperature:  31.0,
		FeelsLike:    34.2,
		Humidity:     48,
		WindSpeed:    2.1,
		Condition:    weather.ConditionHaze,
		VisibilityKm: 3,
		ObservedAt:   time.Now(),
	}, nil
}

func (m *mockProvider) GetForecast(_ context.Context, lat, lon float64) (*weather.Forecast, error) {
	m.calls.Add(1)
	if err := m.getError(); err != nil {
		return nil, err
	}
	if m.forecast != nil {
		return m.forecast, nil
	}
	return &weather.Forecast{Lat: lat, Lon: lon}, nil
}

type mockAirQuality struct {
	reading  *airquality.Reading
	forecast []airquality.Reading
	err      error
}

func (m *mockAirQuality) GetReading(context.Context, float64, float64) (*airquality.Reading, error) {
	return m.reading, m.err
}

func (m *mockAirQuality) GetForecast(context.Context, float64, float64) ([]airquality.Reading, error) {
	return m.forecast, m.err
}

func newService(t *testing.T, cfg weather.ServiceConfig) *weather.Service {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	s, err := weather.NewService(cfg)
	require.NoError(t, err)
	return s
}

func TestService_GetCurrentWeather_Caching(t *testing.T) {
	provider := &mockProvider{}
	service := newService(t, weather.ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	obs, err := service.GetCurrentWeather(context.Background(), 28.61, 77.21)
	require.NoError(t, err)
	assert.Equal(t, 31.0, obs.Temperature)

	_, err = service.GetCurrentWeather(context.Background(), 28.61, 77.21)
	require.NoError(t, err)

	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestService_GetCurrentWeather_CacheGriding(t *testing.T) {
	provider := &mockProvider{}
	service := newService(t, weather.ServiceConfig{Provider: provider, CacheGridSize: 0.1})

	_, err := service.GetCurrentWeather(context.Background(), 28.612, 77.201)
	require.NoError(t, err)
	_, err = service.GetCurrentWeather(context.Background(), 28.655, 77.245)
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.calls.Load())

	_, err = service.GetCurrentWeather(context.Background(), 28.75, 77.2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestService_GetCurrentWeather_InvalidCoordinates(t *testing.T) {
	provider := &mockProvider{}
	service := newService(t, weather.ServiceConfig{Provider: provider})

	tests := []struct {
		name string
		lat  float64
		lon  float64
	}{
		{"lat too high", 91.0, 77.2},
		{"lat too low", -91.0, 77.2},
		{"lon too high", 28.6, 181.0},
		{"lon too low", 28.6, -181.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.GetCurrentWeather(context.Background(), tt.lat, tt.lon)
			assert.ErrorIs(t, err, weather.ErrInvalidCoordinates)
		})
	}
	assert.Zero(t, provider.calls.Load())
}

func TestService_StaleIfError(t *testing.T) {
	provider := &mockProvider{}
	service := newService(t, weather.ServiceConfig{
		Provider:        provider,
		CacheTTL:        time.Millisecond,
		StaleIfErrorTTL: time.Hour,
	})

	_, err := service.GetCurrentWeather(context.Background(), 28.61, 77.21)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	provider.setError(errors.New("upstream down"))

	obs, err := service.GetCurrentWeather(context.Background(), 28.61, 77.21)
	require.NoError(t, err)
	assert.Equal(t, 31.0, obs.Temperature)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestService_ProviderErrorWithoutCache(t *testing.T) {
	provider := &mockProvider{}
	provider.setError(errors.New("upstream down"))
	service := newService(t, weather.ServiceConfig{Provider: provider})

	_, err := service.GetCurrentWeather(context.Background(), 28.61, 77.21)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)

	_, err = service.GetForecast(context.Background(), 28.61, 77.21)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestService_ConcurrentMissesShareFetch(t *testing.T) {
	provider := &mockProvider{delay: 50 * time.Millisecond}
	service := newService(t, weather.ServiceConfig{Provider: provider})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.GetCurrentWeather(context.Background(), 28.61, 77.21)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestService_Conditions(t *testing.T) {
	aq := &mockAirQuality{reading: &airquality.Reading{Index: 212, Category: 4}}
	service := newService(t, weather.ServiceConfig{Provider: &mockProvider{}, AirQuality: aq})

	c, err := service.Conditions(context.Background(), 28.61, 77.21)
	require.NoError(t, err)
	require.NotNil(t, c.Exposure)
	assert.Equal(t, airquality.Index(212), c.Exposure.Index)
	assert.Equal(t, weather.ConditionHaze, c.Observation.Condition)
}

func TestService_Conditions_ExposureFailureIsTolerated(t *testing.T) {
	aq := &mockAirQuality{err: airquality.ErrProviderUnavailable}
	service := newService(t, weather.ServiceConfig{Provider: &mockProvider{}, AirQuality: aq})

	c, err := service.Conditions(context.Background(), 28.61, 77.21)
	require.NoError(t, err)
	assert.Nil(t, c.Exposure)
	assert.NotNil(t, c.Observation)
}

func TestService_Conditions_WeatherFailure(t *testing.T) {
	provider := &mockProvider{}
	provider.setError(errors.New("boom"))
	aq := &mockAirQuality{reading: &airquality.Reading{Index: 80}}
	service := newService(t, weather.ServiceConfig{Provider: provider, AirQuality: aq})

	_, err := service.Conditions(context.Background(), 28.61, 77.21)
	assert.ErrorIs(t, err, weather.ErrProviderUnavailable)
}

func TestService_DailyForecast(t *testing.T) {
	provider := &mockProvider{forecast: &weather.Forecast{Entries: []weather.ForecastEntry{
		entry(19, 15, 33, 1, weather.ConditionClear),
		entry(20, 9, 25, 2, weather.ConditionSmoke),
		entry(20, 12, 29, 4, weather.ConditionSmoke),
	}}}
	aq := &mockAirQuality{forecast: []airquality.Reading{
		{MeasuredAt: at(20, 9), Index: 240},
		{MeasuredAt: at(20, 12), Index: 260},
	}}
	service := newService(t, weather.ServiceConfig{
		Provider:   provider,
		AirQuality: aq,
		Location:   ist,
		Now:        func() time.Time { return at(19, 10) },
	})

	days, err := service.DailyForecast(context.Background(), 28.61, 77.21)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2026-10-20", days[0].Date)
	assert.Equal(t, weather.ConditionSmoke, days[0].Condition)
	assert.Equal(t, airquality.Index(250), days[0].Exposure)
	assert.Equal(t, 27.0, days[0].AvgTemp)
	assert.Equal(t, 3.0, days[0].WindSpeed)
}

func TestService_DailyForecast_WithoutPollution(t *testing.T) {
	provider := &mockProvider{forecast: &weather.Forecast{Entries: []weather.ForecastEntry{
		entry(20, 9, 25, 2, weather.ConditionClear),
	}}}
	aq := &mockAirQuality{err: airquality.ErrProviderUnavailable}
	service := newService(t, weather.ServiceConfig{
		Provider:   provider,
		AirQuality: aq,
		Location:   ist,
		Now:        func() time.Time { return at(19, 10) },
	})

	days, err := service.DailyForecast(context.Background(), 28.61, 77.21)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Zero(t, days[0].Exposure)
}

func TestService_InvalidateCache(t *testing.T) {
	provider := &mockProvider{}
	service := newService(t, weather.ServiceConfig{Provider: provider})

	_, err := service.GetCurrentWeather(context.Background(), 28.61, 77.21)
	require.NoError(t, err)
	_, err = service.GetForecast(context.Background(), 28.61, 77.21)
	require.NoError(t, err)

	stats := service.CacheStats()
	assert.Equal(t, 1, stats.WeatherEntries)
	assert.Equal(t, 1, stats.ForecastEntries)
	assert.Equal(t, "mock", stats.Provider)

	service.InvalidateCache()
	assert.Zero(t, service.CacheStats().WeatherEntries)

	_, err = service.GetCurrentWeather(context.Background(), 28.61, 77.21)
	require.NoError(t, err)
	assert.Equal(t, int32(3), provider.calls.Load())
}
