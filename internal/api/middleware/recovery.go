package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/api/models"
)

// Recovery turns a handler panic into a logged 500 problem. When the handler
// had already started its reply only the log entry is written.
// http.ErrAbortHandler is re-raised so the server aborts the connection.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recorderFor(w)
			defer func() {
				v := recover()
				switch {
				case v == nil:
					return
				case v == http.ErrAbortHandler:
					panic(v)
				}

				id := GetRequestID(r.Context())
				log.Error().
					Str("request_id", id).
					Str("method", r.Method).
					Str("route", routePattern(r)).
					Interface("panic", v).
					Bool("response_started", rec.wroteHeader).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if !rec.wroteHeader {
					models.KindInternal.New(id, "an unexpected error occurred").At(r.URL.Path).Write(rec)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
