// Package response writes JSON bodies and problem documents, tagging every
// reply with the request ID.
package response

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/breathway/breathway/internal/api/middleware"
	"github.com/breathway/breathway/internal/api/models"
)

func tag(w http.ResponseWriter, r *http.Request) string {
	id := middleware.GetRequestID(r.Context())
	if id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	return id
}

// JSON encodes data with status. A nil data writes headers only.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	tag(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// Attachment starts a 200 download named filename; the caller streams the body.
func Attachment(w http.ResponseWriter, r *http.Request, contentType, filename string) {
	tag(w, r)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
}

// Problem writes an occurrence of kind for r.
func Problem(w http.ResponseWriter, r *http.Request, kind models.ProblemKind, detail string) {
	kind.New(tag(w, r), detail).At(r.URL.Path).Write(w)
}

// BadRequest writes a 400 listing the invalid fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	models.Validation(tag(w, r), detail, fields).At(r.URL.Path).Write(w)
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindNotFound, detail)
}

// NoRoute writes a 422 for endpoints the router could not connect.
func NoRoute(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindNoRoute, detail)
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindInternal, detail)
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, models.KindUnavailable, detail)
}
