package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-launch-api/internal/capture"
	"github.com/unclebandit/campaign-launch-api/internal/config"
	"github.com/unclebandit/campaign-launch-api/internal/errorrecord"
	"github.com/unclebandit/campaign-launch-api/internal/logger"
)

// Reporter emits one log line per error record and forwards error-severity
// faults to the capture sink.
type Reporter struct {
	log  *zap.Logger
	sink capture.Sink
	opts config.Options
}

func NewReporter(log *zap.Logger, sink capture.Sink, opts config.Options) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = capture.Nop{}
	}
	return &Reporter{log: log, sink: sink, opts: opts}
}

// Report never fails. Sink errors are logged and swallowed.
func (r *Reporter) Report(ctx context.Context, rec errorrecord.Record, fault error, severity Severity) {
	msg := fmt.Sprintf("[%s] [%d] %s: %s", rec.ErrorID, rec.StatusCode, rec.ErrorType, rec.Message)

	fields := []zap.Field{
		zap.String("error_id", rec.ErrorID),
		zap.String("error_type", rec.ErrorType),
		zap.String("error_message", rec.Message),
		zap.Any("context", rec.Context),
		zap.Int("http.status_code", rec.StatusCode),
		zap.String("http.status_range", StatusRange(rec.StatusCode)),
		zap.String("status_category", string(severity)),
	}
	fields = append(fields, logger.TraceFields(ctx)...)
	if fault != nil && !r.opts.IsProduction() {
		fields = append(fields, zap.String("error_details", fault.Error()))
	}

	if ce := r.log.Check(severity.Level(), msg); ce != nil {
		ce.Write(fields...)
	}

	r.annotateSpan(ctx, rec, fault, severity)

	if severity != SeverityError || !r.opts.CaptureSinkEnabled {
		return
	}
	err := r.sink.Capture(ctx, capture.Event{
		ErrorID:    rec.ErrorID,
		ErrorType:  rec.ErrorType,
		Message:    rec.Message,
		StatusCode: rec.StatusCode,
		Timestamp:  rec.Timestamp,
		Fault:      fault,
		Context:    rec.Context,
	})
	if err != nil {
		r.log.Warn("capture sink rejected event", zap.String("error_id", rec.ErrorID), zap.Error(err))
	}
}

func (r *Reporter) annotateSpan(ctx context.Context, rec errorrecord.Record, fault error, severity Severity) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("error.id", rec.ErrorID),
		attribute.String("error.type", rec.ErrorType),
	)
	if severity != SeverityError {
		return
	}
	if fault != nil {
		span.RecordError(fault)
	}
	span.SetStatus(codes.Error, rec.Message)
}
