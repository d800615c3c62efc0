package models

import (
	"net/http"

	"github.com/goccy/go-json"
)

// ProblemContentType is the media type of every error body.
const ProblemContentType = "application/problem+json"

const problemBase = "https://api.breathway.in/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation      = problemBase + "validation-error"
	ProblemTypeNotFound        = problemBase + "not-found"
	ProblemTypeNoRoute         = problemBase + "no-route"
	ProblemTypeUnsupportedType = problemBase + "unsupported-media-type"
	ProblemTypeTooManyRequests = problemBase + "too-many-requests"
	ProblemTypeTLSRequired     = problemBase + "tls-required"
	ProblemTypeInternal        = problemBase + "internal-error"
	ProblemTypeUnavailable     = problemBase + "service-unavailable"
)

// Problem is an RFC 7807 error document.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid request field by its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemKind fixes the type, title and status shared by every occurrence
// of one class of error.
type ProblemKind struct {
	Type   string
	Title  string
	Status int
}

// Problem kinds returned by the API.
var (
	KindValidation      = ProblemKind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	KindNotFound        = ProblemKind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	KindNoRoute         = ProblemKind{ProblemTypeNoRoute, "No route found", http.StatusUnprocessableEntity}
	KindUnsupportedType = ProblemKind{ProblemTypeUnsupportedType, "Unsupported media type", http.StatusUnsupportedMediaType}
	KindTooManyRequests = ProblemKind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	KindTLSRequired     = ProblemKind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	KindInternal        = ProblemKind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	KindUnavailable     = ProblemKind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

// New returns an occurrence of k for the request identified by traceID.
func (k ProblemKind) New(traceID, detail string) *Problem {
	return &Problem{
		Type:    k.Type,
		Title:   k.Title,
		Status:  k.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// Validation returns a 400 problem listing the offending fields.
func Validation(traceID, detail string, fields []FieldError) *Problem {
	p := KindValidation.New(traceID, detail)
	p.Errors = fields
	return p
}

// At sets the request path the problem occurred on.
func (p *Problem) At(instance string) *Problem {
	p.Instance = instance
	return p
}

// Write sends p with its status. The trace ID is echoed as X-Request-Id so
// clients can quote it without parsing the body.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ProblemContentType)
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
