package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/api/models"
	"github.com/breathway/breathway/internal/api/response"
	"github.com/breathway/breathway/internal/worker"
)

// RegionSource serves regional exposure snapshots.
type RegionSource interface {
	Snapshot(kind worker.Kind) (*worker.Snapshot, bool)
	RefreshKind(ctx context.Context, kind worker.Kind) (*worker.Snapshot, error)
}

// ExposureHandler handles regional exposure endpoints.
type ExposureHandler struct {
	regions RegionSource
	logger  zerolog.Logger
}

// NewExposureHandler creates a new ExposureHandler.
func NewExposureHandler(regions RegionSource, logger zerolog.Logger) *ExposureHandler {
	return &ExposureHandler{regions: regions, logger: logger}
}

// ListRegions handles GET /v1/exposure/regions?kind=states|cities. The
// background snapshot is served when present; otherwise the table is
// refreshed on demand.
func (h *ExposureHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	kind := worker.KindStates
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind = worker.Kind(raw)
	}
	if !kind.Valid() {
		response.BadRequest(w, r, "unknown region kind", []models.FieldError{
			{Field: "kind", Message: "must be one of: states, cities", Code: "oneof"},
		})
		return
	}

	snap, ok := h.regions.Snapshot(kind)
	if !ok {
		var err error
		if snap, err = h.regions.RefreshKind(r.Context(), kind); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	if len(snap.Regions) == 0 {
		response.ServiceUnavailable(w, r, "no regional exposure data available")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, toRegions(snap))
}
