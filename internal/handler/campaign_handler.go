// internal/handler/campaign_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/campaign-launch-api/internal/config"
	"github.com/unclebandit/campaign-launch-api/internal/errorrecord"
	appErrors "github.com/unclebandit/campaign-launch-api/internal/errors"
	"github.com/unclebandit/campaign-launch-api/internal/flow"
	"github.com/unclebandit/campaign-launch-api/internal/service"
	"github.com/unclebandit/campaign-launch-api/internal/telemetry"
)

const msgLaunchFailed = "Failed to launch campaign due to database exception"

// CampaignHandler holds the dependencies for campaign-related HTTP handlers
type CampaignHandler struct {
	Service  *service.CampaignService
	Flow     *flow.Orchestrator
	Builder  *errorrecord.Builder
	Reporter *telemetry.Reporter
	Opts     config.Options
	Log      *zap.Logger

	// Ping checks the database for /health. Optional.
	Ping func(ctx context.Context) error
}

// NewCampaignHandler wires the handler around a campaign service.
func NewCampaignHandler(svc *service.CampaignService, reporter *telemetry.Reporter, opts config.Options, log *zap.Logger) *CampaignHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CampaignHandler{
		Service:  svc,
		Flow:     flow.NewLaunchFlow(svc, log.Named("flow")),
		Builder:  errorrecord.NewBuilder(opts),
		Reporter: reporter,
		Opts:     opts,
		Log:      log,
	}
}

// APIStatus handles GET /api/
func (h *CampaignHandler) APIStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Campaign Launch API",
		"status":  "running",
	})
}

// Health handles GET /health
func (h *CampaignHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			h.writeError(w, r, appErrors.NewDatabase(appErrors.KindDatabase, "ping", err), "Database unavailable", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "healthy",
		"environment": h.Opts.Environment,
		"version":     h.Opts.ServiceVersion,
	})
}

// CreateCampaignHandler handles POST /campaigns/create?name=&description=
func (h *CampaignHandler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		h.writeError(w, r, appErrors.NewValidation("name", "Campaign name is required"), "", nil)
		return
	}

	campaign, err := h.Service.CreateCampaign(r.Context(), name, optionalParam(r, "description"))
	if err != nil {
		h.writeError(w, r, err, "Failed to create campaign", map[string]any{"name": name})
		return
	}

	h.Log.Info("campaign created", zap.Int("campaign_id", campaign.ID))
	writeJSON(w, http.StatusOK, campaign)
}

// CreateDuplicateHandler handles POST /campaigns/create-duplicate. It inserts
// under a caller-chosen id, so a taken id surfaces as an integrity error.
func (h *CampaignHandler) CreateDuplicateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.FormValue("campaign_id"))
	if err != nil {
		h.writeError(w, r, appErrors.NewValidation("campaign_id", "campaign_id must be an integer"), "", nil)
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		h.writeError(w, r, appErrors.NewValidation("name", "Campaign name is required"), "", nil)
		return
	}

	campaign, err := h.Service.CreateCampaignWithID(r.Context(), id, name, optionalParam(r, "description"))
	if err != nil {
		h.writeError(w, r, err, "Failed to create campaign with explicit id", map[string]any{"campaign_id": id})
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// TestTableErrorHandler handles POST /campaigns/test-table-error
func (h *CampaignHandler) TestTableErrorHandler(w http.ResponseWriter, r *http.Request) {
	err := h.Service.ProbeMissingTable(r.Context())
	if err == nil {
		err = errors.New("query against a missing table unexpectedly succeeded")
	}
	h.writeError(w, r, err, "The campaigns table could not be found in the database", map[string]any{
		"endpoint": "/campaigns/test-table-error",
	})
}

// ValidateCampaignHandler handles POST /campaigns/{id}/validate
func (h *CampaignHandler) ValidateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	result, err := h.Service.ValidateCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "", map[string]any{"campaign_id": id})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SetupCampaignHandler handles POST /campaigns/{id}/setup
func (h *CampaignHandler) SetupCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	result, err := h.Service.SetupCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "", map[string]any{"campaign_id": id})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// LaunchCampaignHandler handles POST /campaigns/{id}/launch
func (h *CampaignHandler) LaunchCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	campaign, err := h.Service.LaunchCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, launchMessage(err), map[string]any{"campaign_id": id})
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// FullLaunchHandler handles POST /campaigns/{id}/full-launch
func (h *CampaignHandler) FullLaunchHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	// An unknown campaign is a failed flow result, not an error response.
	result, err := h.Flow.Run(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "", map[string]any{"campaign_id": id})
		return
	}

	resp := fullLaunchResponse{
		Status:     result.Status,
		Step:       result.Step,
		Errors:     result.Errors,
		Message:    result.Message,
		CampaignID: result.CampaignID,
	}
	if result.Err != nil {
		message := ""
		if result.Step == "launch" {
			message = launchMessage(result.Err)
		}
		rec := h.recordFault(r, result.Err, message, map[string]any{
			"campaign_id": id,
			"step":        result.Step,
		})
		env := rec.Envelope()
		resp.Error = &env
	}
	writeJSON(w, http.StatusOK, resp)
}

type fullLaunchResponse struct {
	Status     string                `json:"status"`
	Step       string                `json:"step"`
	Errors     []string              `json:"errors,omitempty"`
	Error      *errorrecord.Envelope `json:"error,omitempty"`
	Message    string                `json:"message,omitempty"`
	CampaignID int                   `json:"campaign_id"`
}

// GetCampaignHandler returns details of a single campaign by ID
func (h *CampaignHandler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	campaign, err := h.Service.GetCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "", map[string]any{"campaign_id": id})
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// ListCampaignsHandler returns every campaign
func (h *CampaignHandler) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.Service.ListCampaigns(r.Context())
	if err != nil {
		h.writeError(w, r, err, "Failed to list campaigns", nil)
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

// TestErrorHandler handles GET /test/error
func (h *CampaignHandler) TestErrorHandler(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, errors.New("test error for logging testing"), "This is a test error for logging testing", map[string]any{
		"endpoint":  "/test/error",
		"operation": "test_error",
	})
}

// SentryDebugHandler handles GET /sentry-debug. It divides by zero at
// runtime; the panic is turned into a 500 by Recoverer.
func (h *CampaignHandler) SentryDebugHandler(w http.ResponseWriter, r *http.Request) {
	var divisor int
	writeJSON(w, http.StatusOK, map[string]int{"result": 1 / divisor})
}

func (h *CampaignHandler) campaignID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, r, appErrors.NewValidation("id", "campaign id must be an integer"), "", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}

// optionalParam returns nil when the parameter is absent or blank.
func optionalParam(r *http.Request, key string) *string {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil
	}
	return &v
}

func launchMessage(err error) string {
	switch appErrors.KindOf(err) {
	case appErrors.KindDatabase, appErrors.KindOperational, appErrors.KindIntegrity:
		return msgLaunchFailed
	}
	return ""
}
