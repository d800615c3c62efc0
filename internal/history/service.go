package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/ranking"
	"github.com/breathway/breathway/internal/routing"
)

// List limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ServiceConfig holds configuration for the history service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// Now returns the record timestamp (default: time.Now).
	Now func() time.Time
}

// Service records and lists ranked trips.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: cfg.Repository, logger: cfg.Logger, now: now}
}

// Record stores the recommended route of res for userID.
func (s *Service) Record(ctx context.Context, userID string, origin, dest Endpoint, profile routing.Profile, res *ranking.Result) (*Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	rec := res.Recommended()
	if rec == nil {
		return nil, ErrNoRecommended
	}

	r := &Record{
		ID:                  "rte_" + uuid.New().String(),
		UserID:              userID,
		Origin:              origin,
		Destination:         dest,
		Profile:             string(profile),
		DistanceKm:          rec.DistanceKm,
		DurationMin:         rec.DurationMin,
		AdjustedDurationMin: rec.EffectiveDuration(),
		Exposure:            rec.Exposure,
		Label:               string(rec.Label),
		Source:              string(res.RecommendationSource),
		CandidateCount:      len(res.Candidates),
		CreatedAt:           s.now().UTC(),
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("storing history record: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("record_id", r.ID).
		Msg("recorded trip")

	return r, nil
}

// List returns up to limit of a user's most recent records. Non-positive
// limits use DefaultListLimit; larger ones are capped at MaxListLimit.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.repo.List(ctx, userID, ListOptions{Limit: limit})
}

var csvHeader = []string{
	"Date", "Origin", "Destination", "Profile",
	"Distance (km)", "Duration (min)", "Adjusted Duration (min)",
	"Origin Exposure", "Destination Exposure", "Route Exposure",
	"Label", "Candidates",
}

// ExportCSV writes all of a user's records to w as CSV, newest first.
func (s *Service) ExportCSV(ctx context.Context, userID string, w io.Writer) error {
	if userID == "" {
		return ErrMissingUserID
	}

	records, err := s.repo.List(ctx, userID, ListOptions{})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(csvRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r *Record) []string {
	return []string{
		r.CreatedAt.Format(time.DateOnly),
		endpointLabel(r.Origin),
		endpointLabel(r.Destination),
		r.Profile,
		formatFloat(r.DistanceKm),
		formatFloat(r.DurationMin),
		formatFloat(r.AdjustedDurationMin),
		strconv.Itoa(int(r.Origin.Exposure)),
		strconv.Itoa(int(r.Destination.Exposure)),
		strconv.Itoa(int(r.Exposure)),
		r.Label,
		strconv.Itoa(r.CandidateCount),
	}
}

func endpointLabel(e Endpoint) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("%.4f,%.4f", e.Point.Lat, e.Point.Lon)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
