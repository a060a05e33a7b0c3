package leavehandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/platform/jobs"
	"leavedesk/internal/storage/memory"
)

type recordingRunner struct {
	jobTypes []string
}

func (r *recordingRunner) RunNow(ctx context.Context, jobType string, run jobs.RunFunc) (any, error) {
	r.jobTypes = append(r.jobTypes, jobType)
	return run(ctx)
}

func newTestRouter(t *testing.T, principal auth.Principal) (http.Handler, *recordingRunner) {
	t.Helper()
	store := memory.New(time.Second)
	log := zerolog.Nop()
	registry := leave.NewRegistry(uuid.NewString, time.Now)
	ledger := leave.NewLedger(log, uuid.NewString, time.Now)
	engine := leave.NewEngine(store, registry, ledger, leave.NewValidator(), audit.New(), nil, log)
	admin := leave.NewAdmin(store, registry, ledger, nil, log)
	runner := &recordingRunner{}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), principal)))
		})
	})
	NewHandler(engine, admin, auth.StaticPermissions{}, runner).RegisterRoutes(r)
	return r, runner
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Details struct {
			Fields []struct {
				Field string `json:"field"`
			} `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func send(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var out errorBody
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func fields(b errorBody) []string {
	var out []string
	for _, f := range b.Error.Details.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestCreateRequestValidatesPayload(t *testing.T) {
	h, _ := newTestRouter(t, auth.Principal{UserID: "u1", Role: auth.RoleEmployee})

	rec, body := send(t, h, http.MethodPost, "/leave/requests",
		`{"startDate":"2030-02-10","endDate":"2030-02-01","durationType":"weekly"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.ElementsMatch(t, []string{"leaveTypeId", "endDate", "durationType", "reason"}, fields(body))
}

func TestCreateRequestRejectsUnknownFields(t *testing.T) {
	h, _ := newTestRouter(t, auth.Principal{UserID: "u1", Role: auth.RoleEmployee})

	rec, body := send(t, h, http.MethodPost, "/leave/requests", `{"leaveTypeId":"x","colour":"red"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", body.Error.Code)
}

func TestListRequestsValidatesFilters(t *testing.T) {
	h, _ := newTestRouter(t, auth.Principal{UserID: "u1", Role: auth.RoleHR})

	rec, body := send(t, h, http.MethodGet, "/leave/requests?status=pending,archived&from=yesterday", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"status", "from"}, fields(body))

	rec, _ = send(t, h, http.MethodGet, "/leave/requests?status=pending,approved&from=2030-01-01&to=2030-12-31", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApproverRoutesNeedPermission(t *testing.T) {
	h, _ := newTestRouter(t, auth.Principal{UserID: "u1", Role: auth.RoleEmployee})

	for _, path := range []string{"/leave/requests/r1/approve", "/leave/requests/r1/reject", "/leave/balances/allocate"} {
		rec, _ := send(t, h, http.MethodPost, path, `{}`)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestMissingRequestIsNotFound(t *testing.T) {
	h, _ := newTestRouter(t, auth.Principal{UserID: "u1", Role: auth.RoleHR})

	rec, body := send(t, h, http.MethodPost, "/leave/requests/missing/approve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body.Error.Code)
}

func TestRolloverRunsAsJob(t *testing.T) {
	h, runner := newTestRouter(t, auth.Principal{UserID: "u1", Role: auth.RoleHR})

	rec, _ := send(t, h, http.MethodPost, "/leave/balances/rollover", `{"year":2031}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{jobs.JobYearRollover}, runner.jobTypes)

	rec, body := send(t, h, http.MethodPost, "/leave/balances/rollover", `{"year":31}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"year"}, fields(body))
}
