package telemetry

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-launch-api/internal/config"
	"github.com/unclebandit/campaign-launch-api/internal/logger"
)

const tracerName = "github.com/unclebandit/campaign-launch-api/internal/telemetry"

// Middleware logs exactly one line per request and wraps the request in a
// server span. It observes the final status on its own and does not depend on
// the Reporter having run.
type Middleware struct {
	log        *zap.Logger
	opts       config.Options
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewMiddleware uses the global tracer provider and propagator when tp is nil.
func NewMiddleware(log *zap.Logger, opts config.Options, tp trace.TracerProvider) *Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Middleware{
		log:        log,
		opts:       opts,
		tracer:     tp.Tracer(tracerName),
		propagator: otel.GetTextMapPropagator(),
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := m.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := m.tracer.Start(ctx, r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
				semconv.UserAgentOriginal(r.UserAgent()),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := math.Round(float64(time.Since(start).Microseconds())/10) / 100

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				span.SetName(r.Method + " " + pattern)
				span.SetAttributes(semconv.HTTPRoute(pattern))
			}
		}
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		m.logRequest(r.WithContext(ctx), status, duration)
	})
}

func (m *Middleware) logRequest(r *http.Request, status int, durationMs float64) {
	severity := SeverityForStatus(status)
	ip := clientIP(r)

	userAgent := r.UserAgent()
	if userAgent == "" {
		userAgent = "unknown"
	}

	msg := fmt.Sprintf("%s - \"%s %s %s\" %d - %.2fms", ip, r.Method, r.URL.Path, r.Proto, status, durationMs)
	fields := []zap.Field{
		zap.String("network.client.ip", ip),
		zap.String("http.method", r.Method),
		zap.String("http.url_details.path", r.URL.Path),
		zap.Int("http.status_code", status),
		zap.String("http.status_range", StatusRange(status)),
		zap.Float64("duration", durationMs),
		zap.String("http.useragent", userAgent),
		zap.String("log_level", string(severity)),
		zap.String("status_category", string(severity)),
		zap.String("version", m.opts.ServiceVersion),
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	fields = append(fields, logger.TraceFields(r.Context())...)

	if ce := m.log.Check(severity.Level(), msg); ce != nil {
		ce.Write(fields...)
	}
}

func clientIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
