package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/api/models"
	"github.com/breathway/breathway/internal/api/response"
	"github.com/breathway/breathway/internal/history"
)

// HistoryStore lists and exports recorded trips.
type HistoryStore interface {
	List(ctx context.Context, userID string, limit int) ([]*history.Record, error)
	ExportCSV(ctx context.Context, userID string, w io.Writer) error
}

// HistoryHandler handles trip history endpoints.
type HistoryHandler struct {
	store  HistoryStore
	logger zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(store HistoryStore, logger zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

// ListHistory handles GET /v1/history/{userId} - most recent trips first.
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer", Code: "min"},
			})
			return
		}
		limit = n
	}

	records, err := h.store.List(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := models.HistoryResponse{
		UserID:  userID,
		Limit:   effectiveLimit(limit),
		Records: make([]models.HistoryEntry, len(records)),
	}
	for i, rec := range records {
		resp.Records[i] = toHistoryEntry(rec)
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// ExportHistory handles GET /v1/history/{userId}/export - CSV download.
func (h *HistoryHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	// Buffer so a failed export still gets a Problem response.
	var buf bytes.Buffer
	if err := h.store.ExportCSV(r.Context(), userID, &buf); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.Attachment(w, r, "text/csv; charset=utf-8", "breathway-history.csv")
	_, _ = buf.WriteTo(w)
}

func effectiveLimit(limit int) int {
	switch {
	case limit <= 0:
		return history.DefaultListLimit
	case limit > history.MaxListLimit:
		return history.MaxListLimit
	default:
		return limit
	}
}
