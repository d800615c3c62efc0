package handler_test

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/api/handler"
	"github.com/breathway/breathway/internal/api/models"
	"github.com/breathway/breathway/internal/worker"
)

func snapshot(kind worker.Kind, regions ...worker.RegionExposure) *worker.Snapshot {
	return &worker.Snapshot{Kind: kind, Regions: regions, RefreshedAt: fixedNow}
}

func delhiExposure() worker.RegionExposure {
	return worker.RegionExposure{
		Region:     worker.Region{Name: "Delhi", Capital: "New Delhi", Point: connaughtPlace},
		Index:      320,
		Band:       airquality.BandFor(320),
		Pollutant:  airquality.PollutantPM10,
		MeasuredAt: fixedNow,
	}
}

func TestListRegions_ServesSnapshot(t *testing.T) {
	regions := &fakeRegions{snapshots: map[worker.Kind]*worker.Snapshot{
		worker.KindStates: snapshot(worker.KindStates, delhiExposure()),
	}}
	h := handler.NewExposureHandler(regions, zerolog.Nop())

	rec := serve(t, http.MethodGet, "/v1/exposure/regions", "/v1/exposure/regions", nil, h.ListRegions)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.RegionsResponse](t, rec)
	assert.Equal(t, "states", resp.Kind)
	require.Len(t, resp.Regions, 1)
	assert.Equal(t, "New Delhi", resp.Regions[0].Capital)
	assert.Equal(t, "Severe", resp.Regions[0].Band)
	assert.Equal(t, "PM10", resp.Regions[0].Pollutant)
	assert.Zero(t, regions.refreshes.Load())
}

func TestListRegions_RefreshesOnDemand(t *testing.T) {
	regions := &fakeRegions{refreshed: snapshot("", delhiExposure())}
	h := handler.NewExposureHandler(regions, zerolog.Nop())

	rec := serve(t, http.MethodGet, "/v1/exposure/regions", "/v1/exposure/regions?kind=cities", nil, h.ListRegions)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cities", decode[models.RegionsResponse](t, rec).Kind)
	assert.Equal(t, int32(1), regions.refreshes.Load())
}

func TestListRegions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		regions *fakeRegions
		want    int
	}{
		{name: "unknown kind", target: "/v1/exposure/regions?kind=districts", regions: &fakeRegions{}, want: http.StatusBadRequest},
		{name: "every lookup failed", target: "/v1/exposure/regions", regions: &fakeRegions{refreshed: snapshot("")}, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewExposureHandler(tt.regions, zerolog.Nop())
			rec := serve(t, http.MethodGet, "/v1/exposure/regions", tt.target, nil, h.ListRegions)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
