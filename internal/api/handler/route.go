package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/breathway/breathway/internal/airquality"
	"github.com/breathway/breathway/internal/api/models"
	"github.com/breathway/breathway/internal/api/response"
	"github.com/breathway/breathway/internal/geo"
	"github.com/breathway/breathway/internal/geocoding"
	"github.com/breathway/breathway/internal/history"
	"github.com/breathway/breathway/internal/ranking"
	"github.com/breathway/breathway/internal/routing"
)

// Ranker ranks route candidates between two points.
type Ranker interface {
	RankRoutes(ctx context.Context, origin, dest geo.Point, profile routing.Profile) (*ranking.Result, error)
}

// PlaceResolver resolves free-text place names.
type PlaceResolver interface {
	Resolve(ctx context.Context, name string) (*geocoding.Place, error)
}

// ExposureLookup returns the exposure index at a point.
type ExposureLookup interface {
	ExposureAt(ctx context.Context, p geo.Point) (airquality.Index, error)
}

// TripRecorder stores the recommended route of a ranking.
type TripRecorder interface {
	Record(ctx context.Context, userID string, origin, dest history.Endpoint, profile routing.Profile, res *ranking.Result) (*history.Record, error)
}

// RouteHandler handles routing endpoints.
type RouteHandler struct {
	ranker   Ranker
	places   PlaceResolver
	exposure ExposureLookup
	history  TripRecorder
	logger   zerolog.Logger
	now      func() time.Time
}

// RouteHandlerConfig holds the dependencies of a RouteHandler.
type RouteHandlerConfig struct {
	Ranker Ranker
	Places PlaceResolver

	// Exposure and History are optional; without History trips are not recorded.
	Exposure ExposureLookup
	History  TripRecorder

	Logger zerolog.Logger
	Now    func() time.Time
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(cfg RouteHandlerConfig) *RouteHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RouteHandler{
		ranker:   cfg.Ranker,
		places:   cfg.Places,
		exposure: cfg.Exposure,
		history:  cfg.History,
		logger:   cfg.Logger,
		now:      now,
	}
}

// RankRoutes handles POST /v1/routes:rank - rank route candidates by exposure.
func (h *RouteHandler) RankRoutes(w http.ResponseWriter, r *http.Request) {
	var input models.RankRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	profile := routing.ProfileCar
	if input.Profile != "" {
		profile = routing.Profile(input.Profile)
	}

	ctx := r.Context()
	origin, dest, err := h.resolveEndpoints(ctx, input.Origin, input.Destination)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.ranker.RankRoutes(ctx, origin.Point, dest.Point, profile)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := models.RankResponse{
		GeneratedAt:          models.Timestamp(h.now()),
		Origin:               models.ResolvedPlace{Name: origin.Name, Point: toPoint(origin.Point)},
		Destination:          models.ResolvedPlace{Name: dest.Name, Point: toPoint(dest.Point)},
		Profile:              string(profile),
		Candidates:           make([]models.RouteCandidate, len(res.Candidates)),
		RecommendedIndex:     res.RecommendedIndex,
		RecommendationSource: string(res.RecommendationSource),
	}
	for i := range res.Candidates {
		resp.Candidates[i] = toCandidate(i, &res.Candidates[i])
	}

	if input.UserID != "" && h.history != nil {
		resp.HistoryID = h.record(ctx, input.UserID, origin, dest, profile, res)
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, resp)
}

// resolveEndpoints geocodes named endpoints concurrently. Coordinates win
// over names when both are given.
func (h *RouteHandler) resolveEndpoints(ctx context.Context, origin, dest models.Place) (history.Endpoint, history.Endpoint, error) {
	var o, d history.Endpoint

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		o, err = h.resolve(gctx, origin)
		return err
	})
	g.Go(func() (err error) {
		d, err = h.resolve(gctx, dest)
		return err
	})
	if err := g.Wait(); err != nil {
		return history.Endpoint{}, history.Endpoint{}, err
	}
	return o, d, nil
}

func (h *RouteHandler) resolve(ctx context.Context, p models.Place) (history.Endpoint, error) {
	if p.Point != nil {
		return history.Endpoint{Name: p.Name, Point: fromPoint(*p.Point)}, nil
	}
	place, err := h.places.Resolve(ctx, p.Name)
	if err != nil {
		return history.Endpoint{}, err
	}
	return history.Endpoint{Name: place.Name, Point: place.Point}, nil
}

// record stores the trip and returns its ID. Failures are logged, not
// surfaced: the ranking already succeeded.
func (h *RouteHandler) record(ctx context.Context, userID string, origin, dest history.Endpoint, profile routing.Profile, res *ranking.Result) string {
	if h.exposure != nil {
		// Endpoint readings were fetched during ranking and are served from cache.
		if idx, err := h.exposure.ExposureAt(ctx, origin.Point); err == nil {
			origin.Exposure = idx
		}
		if idx, err := h.exposure.ExposureAt(ctx, dest.Point); err == nil {
			dest.Exposure = idx
		}
	}

	rec, err := h.history.Record(ctx, userID, origin, dest, profile, res)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to record trip")
		return ""
	}
	return rec.ID
}
