package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unclebandit/campaign-launch-api/internal/capture"
	"github.com/unclebandit/campaign-launch-api/internal/config"
	"github.com/unclebandit/campaign-launch-api/internal/handler"
	"github.com/unclebandit/campaign-launch-api/internal/repository/repositorytest"
	"github.com/unclebandit/campaign-launch-api/internal/service"
	"github.com/unclebandit/campaign-launch-api/internal/telemetry"
)

type recordingSink struct {
	mu     sync.Mutex
	events []capture.Event
}

func (r *recordingSink) Capture(_ context.Context, ev capture.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) Events() []capture.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.Event(nil), r.events...)
}

type testServer struct {
	h      *handler.CampaignHandler
	router http.Handler
	logs   *observer.ObservedLogs
	sink   *recordingSink
}

func newServer(t *testing.T, env string) *testServer {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)
	sink := &recordingSink{}
	opts := config.Options{
		Environment:              env,
		ServiceName:              "campaign-api",
		ServiceVersion:           "1.0.0",
		CaptureSinkEnabled:       true,
		StructuredLoggingEnabled: true,
	}

	svc := service.NewCampaignService(repositorytest.NewSQLite(t))
	reporter := telemetry.NewReporter(log, sink, opts)
	h := handler.NewCampaignHandler(svc, reporter, opts, log)
	mw := telemetry.NewMiddleware(log, opts, nil)

	return &testServer{h: h, router: handler.NewRouter(h, mw), logs: logs, sink: sink}
}

func (s *testServer) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func (s *testServer) create(t *testing.T, name, description string) int {
	t.Helper()
	q := url.Values{"name": {name}}
	if description != "" {
		q.Set("description", description)
	}
	rec, body := s.do(t, http.MethodPost, "/campaigns/create?"+q.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return int(body["id"].(float64))
}

func (s *testServer) status(t *testing.T, id int) string {
	t.Helper()
	rec, body := s.do(t, http.MethodGet, "/campaigns/"+strconv.Itoa(id))
	require.Equal(t, http.StatusOK, rec.Code)
	return body["status"].(string)
}

func campaignPath(id int, action string) string {
	return "/campaigns/" + strconv.Itoa(id) + "/" + action
}

func assertEnvelope(t *testing.T, body map[string]any, status int, errorType string) {
	t.Helper()
	for _, key := range []string{"error", "message", "status_code", "error_id", "timestamp"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, errorType, body["error"])
	assert.Equal(t, errorType, body["error_type"])
	assert.EqualValues(t, status, body["status_code"])
}

func TestCreateCampaign(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	rec, body := s.do(t, http.MethodPost, "/campaigns/create?name=Summer+Sale&description=desc")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "Summer Sale", body["name"])
	assert.Equal(t, "desc", body["description"])
	assert.Equal(t, "draft", body["status"])
	assert.Equal(t, false, body["is_active"])
	assert.Contains(t, body, "launched_at")
	assert.Nil(t, body["launched_at"])
}

func TestCreatedAtMatchesLaterRead(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	_, created := s.do(t, http.MethodPost, "/campaigns/create?name=Summer+Sale")
	id := int(created["id"].(float64))
	_, fetched := s.do(t, http.MethodGet, "/campaigns/"+strconv.Itoa(id))

	assert.Equal(t, created["created_at"], fetched["created_at"])
}

func TestCreateCampaignBlankName(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	rec, body := s.do(t, http.MethodPost, "/campaigns/create?name=%20%20")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertEnvelope(t, body, 400, "ValidationError")
	assert.Empty(t, s.sink.Events())
}

func TestValidateShortName(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Ad", "x")

	rec, body := s.do(t, http.MethodPost, campaignPath(id, "validate"))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.EqualValues(t, id, body["campaign_id"])
	assert.Equal(t, false, body["is_valid"])
	assert.Equal(t, []any{"Campaign name must be at least 3 characters"}, body["validation_errors"])
	assert.Equal(t, "draft", s.status(t, id))
}

func TestValidateReportsBothViolationsInOrder(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Ad", "")

	_, body := s.do(t, http.MethodPost, campaignPath(id, "validate"))
	assert.Equal(t, []any{
		"Campaign name must be at least 3 characters",
		"Campaign description is required",
	}, body["validation_errors"])
	assert.Equal(t, "draft", s.status(t, id))
}

func TestSetupOnDraftIsInvalidTransition(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Summer Sale", "desc")

	rec, body := s.do(t, http.MethodPost, campaignPath(id, "setup"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertEnvelope(t, body, 400, "InvalidStateTransition")
	assert.EqualValues(t, id, body["campaign_id"])
	assert.Equal(t, "draft", s.status(t, id))
	assert.Empty(t, s.sink.Events())
}

func TestLifecycleEndsInLaunchFault(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Summer Sale", "desc")
	assert.Equal(t, "draft", s.status(t, id))

	rec, body := s.do(t, http.MethodPost, campaignPath(id, "validate"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["is_valid"])
	assert.Equal(t, "validated", s.status(t, id))

	rec, body = s.do(t, http.MethodPost, campaignPath(id, "setup"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["setup_complete"])
	details := body["setup_details"].(map[string]any)
	assert.Equal(t, true, details["resources_allocated"])
	assert.Contains(t, details, "setup_timestamp")
	assert.Equal(t, "setup_complete", s.status(t, id))

	rec, body = s.do(t, http.MethodPost, campaignPath(id, "launch"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertEnvelope(t, body, 500, "OperationalError")
	assert.Equal(t, "Failed to launch campaign due to database exception", body["message"])
	assert.EqualValues(t, id, body["campaign_id"])
	assert.Contains(t, body, "details")
	assert.Equal(t, "setup_complete", s.status(t, id))

	events := s.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, body["error_id"], events[0].ErrorID)
	assert.EqualValues(t, id, events[0].Context["campaign_id"])
}

func TestLaunchRedactedInProduction(t *testing.T) {
	s := newServer(t, config.EnvironmentProduction)
	id := s.create(t, "Summer Sale", "desc")
	s.do(t, http.MethodPost, campaignPath(id, "validate"))
	s.do(t, http.MethodPost, campaignPath(id, "setup"))

	rec, body := s.do(t, http.MethodPost, campaignPath(id, "launch"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertEnvelope(t, body, 500, "OperationalError")
	assert.EqualValues(t, id, body["campaign_id"])
	assert.NotContains(t, body, "details")
	assert.NotContains(t, rec.Body.String(), "campaign_launch_ledger")
}

func TestLaunchFaultTextStaysOutOfProductionLogs(t *testing.T) {
	s := newServer(t, config.EnvironmentProduction)
	id := s.create(t, "Summer Sale", "desc")
	s.do(t, http.MethodPost, campaignPath(id, "validate"))
	s.do(t, http.MethodPost, campaignPath(id, "setup"))

	_, body := s.do(t, http.MethodPost, campaignPath(id, "launch"))

	lines := s.logs.FilterField(zap.String("error_id", body["error_id"].(string))).All()
	require.Len(t, lines, 1)
	fields := lines[0].ContextMap()
	assert.NotContains(t, fields, "error_details")
	logged := fmt.Sprint(fields["context"])
	assert.NotContains(t, logged, "campaign_launch_ledger")
	assert.NotContains(t, logged, "no such table")
	assert.Contains(t, logged, "record launch")
}

func TestLaunchFaultTextInDevDetailsAndLogs(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Summer Sale", "desc")
	s.do(t, http.MethodPost, campaignPath(id, "validate"))
	s.do(t, http.MethodPost, campaignPath(id, "setup"))

	_, body := s.do(t, http.MethodPost, campaignPath(id, "launch"))

	details := body["details"].(map[string]any)
	assert.Contains(t, details["error"], "campaign_launch_ledger")

	lines := s.logs.FilterField(zap.String("error_id", body["error_id"].(string))).All()
	require.Len(t, lines, 1)
	fields := lines[0].ContextMap()
	assert.Contains(t, fields["error_details"], "campaign_launch_ledger")
	assert.NotContains(t, fmt.Sprint(fields["context"]), "campaign_launch_ledger")
}

func TestLaunchBeforeSetup(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Summer Sale", "desc")

	rec, body := s.do(t, http.MethodPost, campaignPath(id, "launch"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertEnvelope(t, body, 400, "InvalidStateTransition")
}

func TestFullLaunchFailsAtLaunch(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Summer Sale", "desc")

	rec, body := s.do(t, http.MethodPost, campaignPath(id, "full-launch"))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "launch", body["step"])
	assert.EqualValues(t, id, body["campaign_id"])
	assert.NotContains(t, body, "errors")

	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assertEnvelope(t, envelope, 500, "OperationalError")
	assert.Equal(t, "setup_complete", s.status(t, id))
	assert.Len(t, s.sink.Events(), 1)
}

func TestFullLaunchStopsAtValidation(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Ad", "")

	rec, body := s.do(t, http.MethodPost, campaignPath(id, "full-launch"))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "validation", body["step"])
	assert.Len(t, body["errors"], 2)
	assert.NotContains(t, body, "error")
	assert.Equal(t, "draft", s.status(t, id))
}

func TestUnknownCampaign(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/campaigns/999"},
		{http.MethodPost, "/campaigns/999/validate"},
		{http.MethodPost, "/campaigns/999/setup"},
		{http.MethodPost, "/campaigns/999/launch"},
	} {
		rec, body := s.do(t, tc.method, tc.path)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
		assertEnvelope(t, body, 404, "NotFoundError")
		assert.EqualValues(t, 999, body["campaign_id"])
	}
	assert.Empty(t, s.sink.Events())
}

func TestFullLaunchUnknownCampaign(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	rec, body := s.do(t, http.MethodPost, "/campaigns/999/full-launch")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "validation", body["step"])
	assert.EqualValues(t, 999, body["campaign_id"])
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assertEnvelope(t, envelope, 404, "NotFoundError")
	assert.Empty(t, s.sink.Events())
}

func TestNonIntegerID(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	rec, body := s.do(t, http.MethodPost, "/campaigns/abc/validate")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertEnvelope(t, body, 400, "ValidationError")
}

func TestListCampaigns(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	s.create(t, "First", "")
	s.create(t, "Second", "desc")

	for _, path := range []string{"/campaigns/", "/campaigns"} {
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		var list []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 2)
		assert.Equal(t, "First", list[0]["name"])
		assert.Nil(t, list[0]["description"])
		assert.Nil(t, list[0]["launched_at"])
	}
}

func TestCreateDuplicateIsIntegrityError(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Original", "desc")

	rec, body := s.do(t, http.MethodPost, "/campaigns/create-duplicate?campaign_id="+strconv.Itoa(id)+"&name=Copy&description=d")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertEnvelope(t, body, 500, "IntegrityError")
	assert.EqualValues(t, id, body["campaign_id"])
	require.Len(t, s.sink.Events(), 1)
}

func TestTestTableError(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	rec, body := s.do(t, http.MethodPost, "/campaigns/test-table-error")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertEnvelope(t, body, 500, "OperationalError")
}

func TestTestErrorExposesDetailsOutsideProduction(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	rec, body := s.do(t, http.MethodGet, "/test/error")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertEnvelope(t, body, 500, "UnexpectedError")
	details := body["details"].(map[string]any)
	assert.Equal(t, "/test/error", details["endpoint"])
	assert.Equal(t, "test_error", details["operation"])
}

func TestPanicBecomesUnexpectedError(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	rec, body := s.do(t, http.MethodGet, "/sentry-debug")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertEnvelope(t, body, 500, "UnexpectedError")
	require.Len(t, s.sink.Events(), 1)
	assert.Contains(t, s.sink.Events()[0].Fault.Error(), "divide by zero")

	// the request line is still logged, once, as a 500
	requestLines := s.logs.FilterField(zap.String("http.url_details.path", "/sentry-debug")).
		FilterFieldKey("network.client.ip").All()
	require.Len(t, requestLines, 1)
	assert.Equal(t, zapcore.ErrorLevel, requestLines[0].Level)
}

func TestPanicAfterResponseStartedIsOnlyReported(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	partial := s.h.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("partial"))
		panic("late failure")
	}))

	rec := httptest.NewRecorder()
	partial.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
	require.Len(t, s.sink.Events(), 1)
	assert.Equal(t, "UnexpectedError", s.sink.Events()[0].ErrorType)
}

func TestEveryRequestLoggedOnceByMiddleware(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)
	id := s.create(t, "Summer Sale", "desc")
	s.do(t, http.MethodPost, campaignPath(id, "setup"))

	requestLines := s.logs.FilterFieldKey("network.client.ip").All()
	require.Len(t, requestLines, 2)
	assert.Equal(t, zapcore.InfoLevel, requestLines[0].Level)
	assert.Equal(t, zapcore.WarnLevel, requestLines[1].Level)

	// the reporter logged the 400 independently
	assert.Equal(t, 1, s.logs.FilterFieldKey("error_id").Len())
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	rec, body := s.do(t, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assertEnvelope(t, body, 404, "NotFoundError")
}

func TestAPIStatusAndHealth(t *testing.T) {
	s := newServer(t, config.EnvironmentDev)

	rec, body := s.do(t, http.MethodGet, "/api/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])

	rec, body = s.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}
