package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/campaign-launch-api/internal/errorrecord"
	appErrors "github.com/unclebandit/campaign-launch-api/internal/errors"
	"github.com/unclebandit/campaign-launch-api/internal/telemetry"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError converts err into an error record, reports it and writes the
// envelope. message overrides the default message for err's kind.
func (h *CampaignHandler) writeError(w http.ResponseWriter, r *http.Request, err error, message string, context map[string]any) {
	rec := h.recordFault(r, err, message, context)
	writeJSON(w, rec.StatusCode, rec.Envelope())
}

func (h *CampaignHandler) recordFault(r *http.Request, err error, message string, context map[string]any) errorrecord.Record {
	kind := appErrors.KindOf(err)
	status := kind.StatusCode()
	if message == "" {
		message = defaultMessage(kind, err)
	}

	var rec errorrecord.Record
	if kind.Reportable() {
		var dbErr *appErrors.DatabaseError
		if errors.As(err, &dbErr) {
			if context == nil {
				context = map[string]any{}
			}
			context["operation"] = dbErr.Op
		}
		rec = h.Builder.BuildFault(string(kind), message, status, context, err)
	} else {
		rec = h.Builder.Build(string(kind), message, status, context, false)
	}

	if h.Reporter != nil {
		h.Reporter.Report(r.Context(), rec, err, telemetry.SeverityForStatus(status))
	} else {
		h.Log.Warn("error record not reported", zap.String("error_id", rec.ErrorID))
	}
	return rec
}

func defaultMessage(kind appErrors.Kind, err error) string {
	var validation *appErrors.ValidationError
	switch kind {
	case appErrors.KindValidation:
		if errors.As(err, &validation) {
			return validation.Message
		}
		return err.Error()
	case appErrors.KindNotFound:
		return "Campaign not found"
	case appErrors.KindInvalidStateTransition:
		return err.Error()
	case appErrors.KindOperational:
		return "Database operational error"
	case appErrors.KindIntegrity:
		return "Database integrity error"
	case appErrors.KindDatabase:
		return "Database error"
	default:
		return "An unexpected error occurred"
	}
}
