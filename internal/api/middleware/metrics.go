package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the scope of the HTTP meter.
const InstrumentationName = "github.com/d9705996/huddle/internal/api"

// statusRecorder captures the status code written by a handler. Unwrap
// keeps http.ResponseController working for streaming handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Instrument counts requests on meter and records their latency per route
// pattern, and logs each request at debug level. Wrap the whole mux with it:
// the pattern is only known once the mux has routed the request.
func Instrument(meter metric.Meter, log *slog.Logger) func(http.Handler) http.Handler {
	requests, err := meter.Int64Counter("huddle.http.requests",
		metric.WithDescription("HTTP requests served."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		log.Warn("middleware: create request counter", "err", err)
	}
	latency, err := meter.Float64Histogram("huddle.http.duration",
		metric.WithDescription("HTTP request latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.Warn("middleware: create latency histogram", "err", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			attrs := metric.WithAttributes(
				attribute.String("http.route", route),
				attribute.String("http.method", r.Method),
				attribute.Int("http.status_code", rec.status),
			)
			elapsed := time.Since(start)
			requests.Add(r.Context(), 1, attrs)
			latency.Record(r.Context(), elapsed.Seconds(), attrs)
			log.Debug("http request", "method", r.Method, "route", route,
				"status", rec.status, "duration_ms", elapsed.Milliseconds())
		})
	}
}
