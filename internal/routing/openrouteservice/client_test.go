package openrouteservice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/routing"
)

var (
	delhi = geo.Point{Lat: 28.6139, Lon: 77.2090}
	agra  = geo.Point{Lat: 27.1767, Lon: 78.0081}
)

// orsStub serves status and body, recording the last decoded request body.
type orsStub struct {
	status int
	body   []byte
	sent   directionsBody
	path   string
	header http.Header
}

func (s *orsStub) start(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.path = r.URL.Path
		s.header = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&s.sent)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		_, _ = w.Write(s.body)
	}))
	t.Cleanup(srv.Close)

	return NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Logger:     zerolog.Nop(),
	})
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return b
}

func TestGetDirections_Alternatives(t *testing.T) {
	stub := &orsStub{status: http.StatusOK, body: fixture(t, "directions_response.json")}
	client := stub.start(t)

	resp, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:          delhi,
		Destination:     agra,
		Profile:         routing.ProfileCar,
		Preference:      routing.PreferenceFastest,
		MaxAlternatives: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v2/directions/driving-car", stub.path)
	assert.Equal(t, "mock123", stub.header.Get("Authorization"))
	assert.Equal(t, "application/json", stub.header.Get("Content-Type"))
	assert.Equal(t, "fastest", stub.sent.Preference)
	require.Len(t, stub.sent.Coordinates, 2)
	assert.Equal(t, delhi.Lon, stub.sent.Coordinates[0][0], "coordinates are lon,lat")
	assert.Equal(t, delhi.Lat, stub.sent.Coordinates[0][1])
	require.NotNil(t, stub.sent.Alternatives)
	assert.Equal(t, alternatives{TargetCount: 2, ShareFactor: 0.6, WeightFactor: 1.4}, *stub.sent.Alternatives)

	assert.Equal(t, ProviderName, resp.Provider)
	require.Len(t, resp.Routes, 2)

	first := resp.Routes[0]
	assert.InDelta(t, 12.35, first.DistanceKm, 1e-9)
	assert.InDelta(t, 40.9, first.DurationMin, 1e-9)
	require.Len(t, first.Geometry, 3)
	assert.Equal(t, geo.Point{Lat: 38.5, Lon: -120.2}, first.Geometry[0])
	assert.Equal(t, -126.453, first.Bounds.Min.Lon())
	assert.Equal(t, 43.252, first.Bounds.Max.Lat())
	assert.Equal(t, "via NH 48", first.Summary)

	assert.Empty(t, resp.Routes[1].Summary, "unnamed roads give no summary")
}

func TestGetDirections_WaypointsDisableAlternatives(t *testing.T) {
	stub := &orsStub{status: http.StatusOK, body: fixture(t, "directions_response.json")}
	client := stub.start(t)

	via := geo.Point{Lat: 28.05, Lon: 77.76}
	_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{
		Origin:          delhi,
		Destination:     agra,
		Waypoints:       []geo.Point{via},
		MaxAlternatives: 2,
	})
	require.NoError(t, err)

	require.Len(t, stub.sent.Coordinates, 3)
	assert.Equal(t, via.Orb(), stub.sent.Coordinates[1])
	assert.Nil(t, stub.sent.Alternatives)
	assert.Equal(t, "/v2/directions/driving-car", stub.path, "profile defaults to car")
}

func TestGetDirections_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		code   string
	}{
		{name: "unroutable engine code", status: http.StatusBadRequest, body: string(fixture(t, "error_response.json")), want: routing.ErrNoRouteFound, code: "NO_ROUTE"},
		{name: "other bad request", status: http.StatusBadRequest, body: `{"error":{"code":2003,"message":"Parameter 'units' has incorrect value"}}`, want: routing.ErrInvalidCoordinates, code: "BAD_REQUEST"},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"code":403,"message":"Rate limit exceeded"}}`, want: routing.ErrRateLimitExceeded, code: "RATE_LIMIT"},
		{name: "bad key", status: http.StatusForbidden, body: `{"error":"Access to this API has been disallowed"}`, want: routing.ErrProviderUnavailable, code: "HTTP_403"},
		{name: "not found", status: http.StatusNotFound, body: `{"error":{"code":404,"message":"nope"}}`, want: routing.ErrNoRouteFound, code: "NO_ROUTE"},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":{"code":500,"message":"Internal server error"}}`, want: routing.ErrProviderUnavailable, code: "SERVER_500"},
		{name: "non json body", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, want: routing.ErrProviderUnavailable, code: "HTTP_502"},
		{name: "empty route list", status: http.StatusOK, body: `{"routes":[]}`, want: routing.ErrNoRouteFound, code: "NO_ROUTE"},
		{name: "broken geometry", status: http.StatusOK, body: `{"routes":[{"summary":{"distance":1,"duration":1},"geometry":"_"}]}`, want: routing.ErrProviderUnavailable, code: "BAD_GEOMETRY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := (&orsStub{status: tt.status, body: []byte(tt.body)}).start(t)

			_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{Origin: delhi, Destination: agra})

			var rerr *routing.Error
			require.ErrorAs(t, err, &rerr)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, rerr.Code)
			assert.Equal(t, ProviderName, rerr.Provider)
		})
	}
}

func TestGetDirections_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name        string
		origin      geo.Point
		destination geo.Point
		code        string
	}{
		{name: "latitude above range", origin: geo.Point{Lat: 91, Lon: 77.2}, destination: agra, code: "INVALID_ORIGIN"},
		{name: "latitude below range", origin: geo.Point{Lat: -91, Lon: 77.2}, destination: agra, code: "INVALID_ORIGIN"},
		{name: "longitude above range", origin: delhi, destination: geo.Point{Lat: 27.1, Lon: 181}, code: "INVALID_DESTINATION"},
		{name: "longitude below range", origin: delhi, destination: geo.Point{Lat: 27.1, Lon: -181}, code: "INVALID_DESTINATION"},
	}

	client := NewClient(ClientConfig{APIKey: "mock123", HTTPClient: failingDoer{}, Logger: zerolog.Nop()})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{Origin: tt.origin, Destination: tt.destination})

			var rerr *routing.Error
			require.ErrorAs(t, err, &rerr)
			assert.ErrorIs(t, err, routing.ErrInvalidCoordinates)
			assert.Equal(t, tt.code, rerr.Code)
		})
	}
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("network error")
}

func TestGetDirections_NetworkError(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "mock123", HTTPClient: failingDoer{}, Logger: zerolog.Nop()})

	_, err := client.GetDirections(context.Background(), routing.DirectionsRequest{Origin: delhi, Destination: agra})

	var rerr *routing.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "REQUEST_FAILED", rerr.Code)
	assert.True(t, rerr.IsRetryable())
}

func TestViaLongestRoad(t *testing.T) {
	assert.Equal(t, "via Ring Road", viaLongestRoad([]step{
		{Distance: 100, Name: "Lane 4"},
		{Distance: 900, Name: "Ring Road"},
		{Distance: 5000, Name: "-"},
	}))
	assert.Empty(t, viaLongestRoad(nil))
}

func TestError_IsRetryable(t *testing.T) {
	assert.True(t, (&routing.Error{Err: routing.ErrProviderUnavailable}).IsRetryable())
	assert.True(t, (&routing.Error{Err: routing.ErrRateLimitExceeded}).IsRetryable())
	assert.False(t, (&routing.Error{Err: routing.ErrNoRouteFound}).IsRetryable())
	assert.False(t, (&routing.Error{Err: routing.ErrInvalidCoordinates}).IsRetryable())
}
