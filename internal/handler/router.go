package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appErrors "github.com/unclebandit/campaign-launch-api/internal/errors"
	"github.com/unclebandit/campaign-launch-api/internal/telemetry"
)

// NewRouter registers every route behind request id, telemetry and panic
// recovery, in that order.
func NewRouter(h *CampaignHandler, mw *telemetry.Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Handler)
	r.Use(h.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeRouteError(w, r, appErrors.KindNotFound, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeRouteError(w, r, appErrors.KindValidation, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/api/", h.APIStatus)
	r.Get("/health", h.Health)
	r.Get("/sentry-debug", h.SentryDebugHandler)
	r.Get("/test/error", h.TestErrorHandler)

	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", h.ListCampaignsHandler)
		r.Post("/create", h.CreateCampaignHandler)
		r.Post("/create-duplicate", h.CreateDuplicateHandler)
		r.Post("/test-table-error", h.TestTableErrorHandler)

		r.Get("/{id}", h.GetCampaignHandler)
		r.Post("/{id}/validate", h.ValidateCampaignHandler)
		r.Post("/{id}/setup", h.SetupCampaignHandler)
		r.Post("/{id}/launch", h.LaunchCampaignHandler)
		r.Post("/{id}/full-launch", h.FullLaunchHandler)
	})

	return r
}

func (h *CampaignHandler) writeRouteError(w http.ResponseWriter, r *http.Request, kind appErrors.Kind, status int, message string) {
	rec := h.Builder.Build(string(kind), message, status, map[string]any{"path": r.URL.Path, "method": r.Method}, false)
	if h.Reporter != nil {
		h.Reporter.Report(r.Context(), rec, nil, telemetry.SeverityForStatus(status))
	}
	writeJSON(w, status, rec.Envelope())
}
