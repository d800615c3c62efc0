package history_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/history"
	"github.com/breathway/breathway/internal/ranking"
	"github.com/breathway/breathway/internal/routing"
	"github.com/breathway/breathway/internal/traffic"
)

var (
	origin = history.Endpoint{Name: "Pune", Point: geo.Point{Lat: 18.5204, Lon: 73.8567}, Exposure: 95}
	dest   = history.Endpoint{Point: geo.Point{Lat: 19.076, Lon: 72.8777}, Exposure: 160}
)

func result() *ranking.Result {
	return &ranking.Result{
		Candidates: []ranking.Candidate{
			{
				Candidate:           routing.Candidate{DistanceKm: 148.2, DurationMin: 170.5},
				AdjustedDurationMin: 170.5,
				Exposure:            140,
				Label:               ranking.ObjectiveFastest,
			},
			{
				Candidate:           routing.Candidate{DistanceKm: 155.75, DurationMin: 182},
				Traffic:             &traffic.Summary{Status: traffic.StatusModerate, DelayMinutes: 9.5},
				AdjustedDurationMin: 191.5,
				Exposure:            118,
				Label:               ranking.ObjectiveCleanest,
			},
		},
		RecommendedIndex:     1,
		RecommendationSource: ranking.SourceExposure,
	}
}

func clock(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[i%len(ts)]
		i++
		return t
	}
}

func TestService_Record(t *testing.T) {
	repo := history.NewInMemoryRepository()
	now := time.Date(2026, 10, 19, 8, 15, 0, 0, time.UTC)
	svc := history.NewService(history.ServiceConfig{Repository: repo, Logger: zerolog.Nop(), Now: clock(now)})

	rec, err := svc.Record(context.Background(), "user-42", origin, dest, routing.ProfileCar, result())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rec.ID, "rte_"))
	assert.Equal(t, "user-42", rec.UserID)
	assert.Equal(t, "driving-car", rec.Profile)
	assert.Equal(t, 155.75, rec.DistanceKm)
	assert.Equal(t, 182.0, rec.DurationMin)
	assert.Equal(t, 191.5, rec.AdjustedDurationMin)
	assert.Equal(t, "cleanest", rec.Label)
	assert.Equal(t, "exposure", rec.Source)
	assert.Equal(t, 2, rec.CandidateCount)
	assert.Equal(t, now, rec.CreatedAt)

	list, err := svc.List(context.Background(), "user-42", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)
}

func TestService_Record_Errors(t *testing.T) {
	svc := history.NewService(history.ServiceConfig{Repository: history.NewInMemoryRepository()})

	_, err := svc.Record(context.Background(), "", origin, dest, routing.ProfileCar, result())
	assert.ErrorIs(t, err, history.ErrMissingUserID)

	_, err = svc.Record(context.Background(), "u", origin, dest, routing.ProfileCar, &ranking.Result{RecommendedIndex: -1})
	assert.ErrorIs(t, err, history.ErrNoRecommended)
}

type failingRepo struct{ history.Repository }

func (failingRepo) Create(context.Context, *history.Record) error {
	return errors.New("connection refused")
}

func TestService_Record_RepositoryFailure(t *testing.T) {
	svc := history.NewService(history.ServiceConfig{Repository: failingRepo{}})

	_, err := svc.Record(context.Background(), "u", origin, dest, routing.ProfileCar, result())
	assert.ErrorContains(t, err, "connection refused")
}

func TestService_List_NewestFirstWithLimit(t *testing.T) {
	repo := history.NewInMemoryRepository()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	var times []time.Time
	for i := range 30 {
		times = append(times, base.Add(time.Duration(i)*time.Hour))
	}
	svc := history.NewService(history.ServiceConfig{Repository: repo, Now: clock(times...)})

	for range 30 {
		_, err := svc.Record(context.Background(), "user-1", origin, dest, routing.ProfileCar, result())
		require.NoError(t, err)
	}
	_, err := svc.Record(context.Background(), "user-2", origin, dest, routing.ProfileCar, result())
	require.NoError(t, err)

	list, err := svc.List(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, list, history.DefaultListLimit)
	assert.Equal(t, times[29], list[0].CreatedAt)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].CreatedAt.After(list[i].CreatedAt))
	}

	list, err = svc.List(context.Background(), "user-1", 5)
	require.NoError(t, err)
	assert.Len(t, list, 5)

	list, err = svc.List(context.Background(), "user-1", 1000)
	require.NoError(t, err)
	assert.Len(t, list, 30)

	_, err = svc.List(context.Background(), "", 5)
	assert.ErrorIs(t, err, history.ErrMissingUserID)
}

func TestService_ExportCSV(t *testing.T) {
	repo := history.NewInMemoryRepository()
	svc := history.NewService(history.ServiceConfig{
		Repository: repo,
		Now: clock(
			time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC),
			time.Date(2026, 10, 18, 7, 30, 0, 0, time.UTC),
		),
	})

	for range 2 {
		_, err := svc.Record(context.Background(), "user-7", origin, dest, routing.ProfileBike, result())
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), "user-7", &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Date", rows[0][0])
	assert.Len(t, rows[0], 12)
	assert.Equal(t, []string{
		"2026-10-18", "Pune", "19.0760,72.8777", "cycling-regular",
		"155.75", "182", "191.5", "95", "160", "118", "cleanest", "2",
	}, rows[1])
	assert.Equal(t, "2026-10-17", rows[2][0])
}

func TestService_ExportCSV_Empty(t *testing.T) {
	svc := history.NewService(history.ServiceConfig{Repository: history.NewInMemoryRepository()})

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), "nobody", &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
