package middleware

import (
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/breathway/breathway/internal/api/middleware"

// Metrics records OpenTelemetry HTTP server instruments. Requests are keyed
// by route pattern so path parameters do not explode cardinality.
type Metrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics creates the instruments on provider's meter.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}

	var errs [4]error
	m.duration, errs[0] = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"))
	m.total, errs[1] = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests by route and status"),
		metric.WithUnit("{request}"))
	m.inFlight, errs[2] = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP server requests being served"),
		metric.WithUnit("{request}"))
	m.size, errs[3] = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP server response bodies"),
		metric.WithUnit("By"))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware records one measurement set per request once it completes.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			active := metric.WithAttributes(semconv.HTTPRequestMethodKey.String(r.Method))
			m.inFlight.Add(ctx, 1, active)
			defer m.inFlight.Add(ctx, -1, active)

			rec := recorderFor(w)
			next.ServeHTTP(rec, r)

			done := metric.WithAttributes(responseAttributes(r, rec.statusCode)...)
			m.duration.Record(ctx, time.Since(start).Seconds(), done)
			m.total.Add(ctx, 1, done)
			m.size.Record(ctx, rec.written, done)
		})
	}
}

func responseAttributes(r *http.Request, status int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRoute(routePattern(r)),
		semconv.HTTPResponseStatusCode(status),
	}
	if status >= http.StatusBadRequest {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	return attrs
}
