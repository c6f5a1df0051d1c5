// Package errorrecord turns a caught fault into the canonical error payload
// returned to clients and handed to the reporter.
package errorrecord

import (
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/campaign-launch-api/internal/config"
)

// CampaignIDKey is the only context key carried through redaction.
const CampaignIDKey = "campaign_id"

// Record is transient and lives for one request.
type Record struct {
	ErrorID    string
	ErrorType  string
	Message    string
	StatusCode int
	Timestamp  time.Time

	// Context is the full diagnostic map. It is logged but never sent to
	// clients as-is.
	Context map[string]any

	// CampaignID and Details are the client-safe projection of Context.
	CampaignID any
	Details    map[string]any
}

// Envelope is the JSON body of every 4xx/5xx response.
type Envelope struct {
	Error      string         `json:"error"`
	ErrorType  string         `json:"error_type"`
	Message    string         `json:"message"`
	StatusCode int            `json:"status_code"`
	ErrorID    string         `json:"error_id"`
	Timestamp  time.Time      `json:"timestamp"`
	CampaignID any            `json:"campaign_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

type Builder struct {
	Environment string
	Now         func() time.Time
}

func NewBuilder(opts config.Options) *Builder {
	return &Builder{Environment: opts.Environment}
}

// Build creates a record with a fresh error id. Details carry the whole
// context only when exposeDetails is set outside production; campaign_id is
// kept in every environment.
func (b *Builder) Build(errorType, message string, statusCode int, context map[string]any, exposeDetails bool) Record {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	rec := Record{
		ErrorID:    uuid.NewString(),
		ErrorType:  errorType,
		Message:    message,
		StatusCode: statusCode,
		Timestamp:  now().UTC(),
		Context:    context,
	}

	if id, ok := context[CampaignIDKey]; ok {
		rec.CampaignID = id
	}
	if exposeDetails && b.Environment != config.EnvironmentProduction && len(context) > 0 {
		rec.Details = make(map[string]any, len(context))
		for k, v := range context {
			rec.Details[k] = v
		}
	}
	return rec
}

// BuildFault is Build for a caught backend fault. Outside production the raw
// fault text joins the client details; Context never carries it, so logs see
// it only through the reporter's environment-gated field.
func (b *Builder) BuildFault(errorType, message string, statusCode int, context map[string]any, fault error) Record {
	rec := b.Build(errorType, message, statusCode, context, true)
	if fault == nil || b.Environment == config.EnvironmentProduction {
		return rec
	}
	details := make(map[string]any, len(rec.Details)+1)
	for k, v := range rec.Details {
		details[k] = v
	}
	details["error"] = fault.Error()
	rec.Details = details
	return rec
}

func (r Record) Envelope() Envelope {
	return Envelope{
		Error:      r.ErrorType,
		ErrorType:  r.ErrorType,
		Message:    r.Message,
		StatusCode: r.StatusCode,
		ErrorID:    r.ErrorID,
		Timestamp:  r.Timestamp,
		CampaignID: r.CampaignID,
		Details:    r.Details,
	}
}
