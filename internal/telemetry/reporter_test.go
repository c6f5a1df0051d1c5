package telemetry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unclebandit/campaign-launch-api/internal/capture"
	"github.com/unclebandit/campaign-launch-api/internal/config"
	"github.com/unclebandit/campaign-launch-api/internal/errorrecord"
	"github.com/unclebandit/campaign-launch-api/internal/telemetry"
)

type recordingSink struct {
	mu     sync.Mutex
	events []capture.Event
	err    error
}

func (r *recordingSink) Capture(_ context.Context, ev capture.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func record(status int, errorType string) errorrecord.Record {
	return errorrecord.Record{
		ErrorID:    "0d7c1f52-3a55-4d4e-9f4c-1b2a3c4d5e6f",
		ErrorType:  errorType,
		Message:    "Failed to launch campaign due to database exception",
		StatusCode: status,
		Timestamp:  time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		Context:    map[string]any{"campaign_id": 7},
	}
}

func TestReport_LogLine(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := telemetry.NewReporter(zap.New(core), nil, config.Options{Environment: config.EnvironmentDev})

	fault := errors.New("no such table: campaign_launch_ledger")
	r.Report(context.Background(), record(500, "OperationalError"), fault, telemetry.SeverityError)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t,
		"[0d7c1f52-3a55-4d4e-9f4c-1b2a3c4d5e6f] [500] OperationalError: Failed to launch campaign due to database exception",
		entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "0d7c1f52-3a55-4d4e-9f4c-1b2a3c4d5e6f", fields["error_id"])
	assert.Equal(t, "OperationalError", fields["error_type"])
	assert.Equal(t, "5xx", fields["http.status_range"])
	assert.Equal(t, "error", fields["status_category"])
	assert.Equal(t, "no such table: campaign_launch_ledger", fields["error_details"])
	assert.Contains(t, fields, "context")
}

func TestReport_ProductionOmitsRawFault(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := telemetry.NewReporter(zap.New(core), nil, config.Options{Environment: config.EnvironmentProduction})

	r.Report(context.Background(), record(500, "OperationalError"), errors.New("secret dsn"), telemetry.SeverityError)

	require.Equal(t, 1, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "error_details")
}

func TestReport_WarningLevelForClientErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := &recordingSink{}
	r := telemetry.NewReporter(zap.New(core), sink, config.Options{CaptureSinkEnabled: true})

	r.Report(context.Background(), record(400, "InvalidStateTransition"), errors.New("bad state"), telemetry.SeverityWarning)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.Zero(t, sink.Len())
}

func TestReport_ForwardsErrorsWhenCaptureEnabled(t *testing.T) {
	sink := &recordingSink{}
	r := telemetry.NewReporter(zap.NewNop(), sink, config.Options{CaptureSinkEnabled: true})

	fault := errors.New("no such table")
	r.Report(context.Background(), record(500, "OperationalError"), fault, telemetry.SeverityError)

	require.Equal(t, 1, sink.Len())
	ev := sink.events[0]
	assert.Equal(t, "0d7c1f52-3a55-4d4e-9f4c-1b2a3c4d5e6f", ev.ErrorID)
	assert.Equal(t, fault, ev.Fault)
	assert.EqualValues(t, 7, ev.Context["campaign_id"])
}

func TestReport_CaptureDisabled(t *testing.T) {
	sink := &recordingSink{}
	r := telemetry.NewReporter(zap.NewNop(), sink, config.Options{CaptureSinkEnabled: false})

	r.Report(context.Background(), record(500, "OperationalError"), errors.New("x"), telemetry.SeverityError)
	assert.Zero(t, sink.Len())
}

func TestReport_SinkFailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := &recordingSink{err: errors.New("sentry unreachable")}
	r := telemetry.NewReporter(zap.New(core), sink, config.Options{CaptureSinkEnabled: true})

	assert.NotPanics(t, func() {
		r.Report(context.Background(), record(500, "UnexpectedError"), errors.New("x"), telemetry.SeverityError)
	})
	assert.Equal(t, 1, logs.FilterMessage("capture sink rejected event").Len())
}

func TestReport_AnnotatesSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, span := tp.Tracer("test").Start(context.Background(), "launch")

	core, logs := observer.New(zap.DebugLevel)
	r := telemetry.NewReporter(zap.New(core), nil, config.Options{})
	r.Report(ctx, record(500, "OperationalError"), errors.New("no such table"), telemetry.SeverityError)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}
