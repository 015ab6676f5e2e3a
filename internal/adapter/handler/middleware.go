package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/blood-service/internal/core/access"
	"github.com/rl1809/blood-service/internal/observability"
)

const tracerName = "blood-service/http"

// handle wraps a route: trace span, request-scoped logger, access log and
// metrics, then the handler itself.
func (h *HTTPHandler) handle(mux *http.ServeMux, pattern string, next http.HandlerFunc) {
	mux.Handle(pattern, h.withTrace(pattern, h.withRequestLogger(h.withAccessLog(pattern, next))))
}

// user requires a caller identity.
func (h *HTTPHandler) user(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := access.Authenticate(r.Header.Get(HeaderUserID), r.Header.Get(HeaderRole))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}

		ctx := access.WithIdentity(r.Context(), id)
		logger := observability.FromContext(ctx).With(
			zap.String("user_id", id.UserID),
			zap.String("role", id.Role),
		)
		ctx = observability.ContextWithLogger(ctx, logger)

		next(w, r.WithContext(ctx))
	}
}

// admin requires a caller identity with the admin role.
func (h *HTTPHandler) admin(next http.HandlerFunc) http.HandlerFunc {
	return h.user(func(w http.ResponseWriter, r *http.Request) {
		id, _ := access.FromContext(r.Context())
		if err := id.RequireAdmin(); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		next(w, r)
	})
}

func (h *HTTPHandler) withTrace(route string, next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

func (h *HTTPHandler) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, rid)

		fields := []zap.Field{zap.String("request_id", rid)}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}

		ctx := observability.ContextWithLogger(r.Context(), h.logger.With(fields...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withAccessLog writes one access log line and records the HTTP metrics
// once the handler has completed.
func (h *HTTPHandler) withAccessLog(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if h.metrics != nil {
			h.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			h.metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}

		observability.FromContext(r.Context()).Info("http_access",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int64("latency_ms", elapsed.Milliseconds()),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
