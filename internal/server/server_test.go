package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	adjustmentservice "github.com/smallbiznis/turnos/internal/adjustment/service"
	"github.com/smallbiznis/turnos/internal/config"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	notificationdomain "github.com/smallbiznis/turnos/internal/notification/domain"
	obslogger "github.com/smallbiznis/turnos/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	reconciliationrepo "github.com/smallbiznis/turnos/internal/reconciliation/repository"
	"github.com/smallbiznis/turnos/internal/reconciliation/schedule"
	reconciliationservice "github.com/smallbiznis/turnos/internal/reconciliation/service"
	"github.com/smallbiznis/turnos/internal/testutil/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingDispatcher struct {
	mu     sync.Mutex
	events []notificationdomain.Event
}

func (d *capturingDispatcher) Dispatch(_ context.Context, event notificationdomain.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *capturingDispatcher) types() []notificationdomain.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notificationdomain.EventType, 0, len(d.events))
	for _, event := range d.events {
		out = append(out, event.Type)
	}
	return out
}

type testServer struct {
	env        *fixture.Env
	engine     *gin.Engine
	dispatcher *capturingDispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := fixture.New(t)
	engine := NewEngine(config.Config{}, obsmetrics.NewHTTPMetricsForTest(prometheus.NewRegistry()))
	dispatcher := &capturingDispatcher{}

	srv := NewServer(ServerParams{
		Gin:            engine,
		Log:            zap.NewNop(),
		Clock:          env.Clock,
		Rules:          env.Rules,
		PeriodSvc:      env.Periods,
		DeclarationSvc: env.Declarations,
		AdjustmentSvc: adjustmentservice.NewService(adjustmentservice.Params{
			Log:        zap.NewNop(),
			Calculator: env.Calculator,
			Accessor:   env.Accessor,
		}),
		ReconciliationSvc: reconciliationservice.NewService(reconciliationservice.Params{
			DB:       env.DB,
			Log:      zap.NewNop(),
			GenID:    env.GenID,
			Clock:    env.Clock,
			Rules:    env.Rules,
			Repo:     reconciliationrepo.Provide(),
			DeclRepo: env.Repo,
			Accessor: env.Accessor,
			Schedule: schedule.NewGormSchedule(env.DB),
		}),
		Dispatcher: dispatcher,
	})
	srv.RegisterRoutes()

	return &testServer{env: env, engine: engine, dispatcher: dispatcher}
}

func (ts *testServer) do(t *testing.T, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(obslogger.HeaderActorID, actor)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func declarationBody(shift string, days int) map[string]any {
	lines := make([]map[string]string, 0, days)
	for i := 1; i <= days; i++ {
		lines = append(lines, map[string]string{
			"work_date":  fixture.Day(2024, 6, i).Format("2006-01-02"),
			"shift_type": shift,
		})
	}
	return map[string]any{
		"professional_id": "prof-1",
		"area_id":         fixture.Period.AreaID,
		"period_code":     fixture.Period.Code,
		"service_id":      "telemed-general",
		"lines":           lines,
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateDeclarationComputesHours(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/declarations", "prof-1", declarationBody("morning", 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	decl := decodeData[declarationdomain.Declaration](t, rec)
	assert.Equal(t, declarationdomain.StateDraft, decl.State)
	assert.Equal(t, "12", decl.TotalHours.String())
	assert.Len(t, decl.Lines, 2)
	assert.Equal(t, "prof-1", decl.LastActor)
}

func TestCreateDeclarationRequiresActor(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/declarations", "", declarationBody("MORNING", 1))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "actor_required", decodeError(t, rec).Code)
}

func TestCreateDeclarationRejectsUnknownShift(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/declarations", "prof-1", declarationBody("NIGHT", 1))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.NotEmpty(t, payload.Errors)
	assert.Equal(t, "shift_type", payload.Errors[0].Field)
}

func TestCreateDeclarationRejectsDuplicate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/declarations", "prof-1", declarationBody("MORNING", 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/declarations", "prof-1", declarationBody("MORNING", 1))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_declaration", decodeError(t, rec).Type)
}

func TestSubmitBelowMinimumReturnsShortfall(t *testing.T) {
	ts := newTestServer(t)
	decl := ts.env.CreateDraft(t, "prof-1", fixture.Lines(1, 10, "MORNING"))

	rec := ts.do(t, http.MethodPost, "/api/declarations/"+decl.ID.String()+"/submit", "prof-1", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	payload := decodeError(t, rec)
	assert.Equal(t, "minimum_hours_not_met", payload.Type)
	assert.Equal(t, "150", payload.Details["required"])
	assert.Equal(t, "60", payload.Details["total"])
	assert.Equal(t, "90", payload.Details["shortfall"])
}

func TestSubmitWithStaleVersionConflicts(t *testing.T) {
	ts := newTestServer(t)
	decl := ts.env.CreateDraft(t, "prof-1", fixture.StandardLines())

	rec := ts.do(t, http.MethodPost, "/api/declarations/"+decl.ID.String()+"/submit", "prof-1",
		map[string]any{"expected_version": decl.Version + 5})
	require.Equal(t, http.StatusConflict, rec.Code)

	payload := decodeError(t, rec)
	assert.Equal(t, "concurrency_conflict", payload.Type)
	assert.Equal(t, "declaration_version_conflict", payload.Code)
}

func TestRejectThenCorrectAndResubmit(t *testing.T) {
	ts := newTestServer(t)
	decl := ts.env.CreateSubmitted(t, "prof-1")
	base := "/api/declarations/" + decl.ID.String()

	rec := ts.do(t, http.MethodPost, base+"/reject", "coordinator", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/reject", "coordinator", map[string]any{"reason": "missing shifts"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected := decodeData[declarationdomain.Declaration](t, rec)
	assert.Equal(t, declarationdomain.StateDraft, rejected.State)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "missing shifts", *rejected.RejectionReason)

	body := declarationBody("MORNING_AFTERNOON", 15)
	rec = ts.do(t, http.MethodPut, base+"/lines", "prof-1", map[string]any{
		"expected_version": rejected.Version,
		"lines":            body["lines"],
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeData[declarationdomain.Declaration](t, rec)
	assert.Equal(t, "180", updated.TotalHours.String())

	rec = ts.do(t, http.MethodPost, base+"/submit", "prof-1", map[string]any{"expected_version": updated.Version})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, declarationdomain.StateSubmitted, decodeData[declarationdomain.Declaration](t, rec).State)

	assert.Contains(t, ts.dispatcher.types(), notificationdomain.EventDeclarationRejected)
}

func TestReconcileSynchronizesWithinTolerance(t *testing.T) {
	ts := newTestServer(t)
	decl := ts.env.CreateReviewed(t, "prof-1")
	base := "/api/declarations/" + decl.ID.String()

	rec := ts.do(t, http.MethodPost, base+"/reconcile", "scheduler-op", map[string]any{
		"loaded_hours": 205,
		"schedule_ref": "SCH-77",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			Status      string  `json:"status"`
			Delta       string  `json:"delta"`
			ScheduleRef *string `json:"schedule_ref"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Data.Status)
	assert.Equal(t, "5", body.Data.Delta)
	require.NotNil(t, body.Data.ScheduleRef)
	assert.Equal(t, "SCH-77", *body.Data.ScheduleRef)

	rec = ts.do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, declarationdomain.StateSynchronized, decodeData[declarationdomain.Declaration](t, rec).State)

	rec = ts.do(t, http.MethodPut, base+"/lines", "prof-1", map[string]any{"lines": []any{}})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "illegal_state_transition", decodeError(t, rec).Type)

	assert.Contains(t, ts.dispatcher.types(), notificationdomain.EventDeclarationSynchronized)
}

func TestReconcileOnDraftIsIllegal(t *testing.T) {
	ts := newTestServer(t)
	decl := ts.env.CreateDraft(t, "prof-1", fixture.StandardLines())

	rec := ts.do(t, http.MethodPost, "/api/declarations/"+decl.ID.String()+"/reconcile", "scheduler-op",
		map[string]any{"loaded_hours": "210"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "declaration_not_reviewed", decodeError(t, rec).Code)
}

func TestListDiscrepanciesUsesToleranceByDefault(t *testing.T) {
	ts := newTestServer(t)
	decl := ts.env.CreateReviewed(t, "prof-1")

	rec := ts.do(t, http.MethodPost, "/api/declarations/"+decl.ID.String()+"/reconcile", "scheduler-op",
		map[string]any{"loaded_hours": 240})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/reconciliation/discrepancies", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeData[[]map[string]any](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/api/reconciliation/discrepancies?threshold=40", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[[]map[string]any](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/reconciliation/discrepancies?threshold=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownDeclaration(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/declarations/12345", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "declaration_not_found", decodeError(t, rec).Code)

	rec = ts.do(t, http.MethodGet, "/api/declarations/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCurrentPeriods(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/periods/vigentes?date=2024-06-15", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeData[[]map[string]any](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/api/periods/vigentes?date=2024-07-15", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[[]map[string]any](t, rec))
}

func TestAuditLogsUnavailableWithoutService(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/audit-logs", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
