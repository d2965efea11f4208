package middleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/pingstream/observability"
)

// Tracing starts a server span per request, continuing any trace context the
// client propagated, and records request metrics when m is non-nil.
func Tracing(m *observability.RequestMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := observability.StartSpan(ctx, observability.SpanHTTPRequest,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
					attribute.String("http.user_agent", r.UserAgent()),
				),
			)
			defer span.End()

			if id := r.Header.Get(HeaderRequestID); id != "" {
				span.SetAttributes(attribute.String("request.id", id))
			}

			start := time.Now()
			if m != nil {
				m.RecordRequestStart(ctx)
			}

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", sw.status))
			if sw.status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
			if m != nil {
				m.RecordRequestEnd(ctx, r.Method, r.URL.Path, sw.status, time.Since(start))
			}
		})
	}
}
