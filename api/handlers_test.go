package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill/toil-tracker/auth"
	"github.com/quill/toil-tracker/toil"
	"github.com/quill/toil-tracker/toil/store"
)

const testSecret = "test-secret"

type testEnv struct {
	router  http.Handler
	service *toil.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	svc := toil.NewService(mem, mem, toil.DefaultPolicy())

	ctx := context.Background()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	managerID := "mgr-1"
	users := []toil.User{
		{ID: "adm-1", Name: "Ada Admin", Email: "ada@example.com", Role: toil.RoleAdmin, PasswordHash: hash},
		{ID: managerID, Name: "Max Manager", Email: "max@example.com", Role: toil.RoleManager, PasswordHash: hash},
		{ID: "emp-1", Name: "Eve Employee", Email: "eve@example.com", Role: toil.RoleEmployee, PasswordHash: hash, ManagerID: &managerID},
	}
	for _, u := range users {
		u.CreatedAt = time.Now()
		require.NoError(t, mem.CreateUser(ctx, u))
	}

	h := NewHandler(svc, testSecret, time.Hour)
	return &testEnv{router: NewRouter(h, "test"), service: svc}
}

func tokenFor(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret,
		auth.Claims{UserID: userID, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// =============================================================================
// AUTH
// =============================================================================

func TestLoginIssuesToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "",
		LoginRequest{Email: "eve@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "emp-1", resp.User.ID)

	// The issued token works on an authenticated route.
	me := env.do(t, http.MethodGet, "/api/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "eve@example.com", decode[UserDTO](t, me).Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "",
		LoginRequest{Email: "eve@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "",
		LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

func TestLogHoursCreatesPendingSubmission(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "emp-1", "employee")

	// 2026-01-05 is a Monday; 08:35-18:35 rounds to 08:30-18:45 (615 min),
	// earning 615 - 480 contracted = 135.
	rec := env.do(t, http.MethodPost, "/api/submissions/hours", token, LogHoursRequest{
		Date: "2026-01-05", StartTime: "08:35", EndTime: "18:35", Project: "Launch",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	sub := decode[SubmissionDTO](t, rec)
	assert.Equal(t, "Pending", sub.Status)
	assert.Equal(t, "earn", sub.Type)
	assert.Equal(t, 135, sub.AmountMinutes)
	assert.Equal(t, "2:15", sub.Amount)
}

func TestLogHoursWeekdayDeclaredAsWeekendEarnsInFull(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "emp-1", "employee")

	// 2025-03-10 is a Monday, but the user ticked the weekend-work box
	// (public holiday, on-call day): the interval earns in full.
	rec := env.do(t, http.MethodPost, "/api/submissions/hours", token, LogHoursRequest{
		Date: "2025-03-10", StartTime: "09:00", EndTime: "12:00", IsWeekend: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	sub := decode[SubmissionDTO](t, rec)
	assert.Equal(t, "Pending", sub.Status)
	assert.Equal(t, 180, sub.AmountMinutes)
}

func TestLogHoursPreviewDoesNotPersist(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "emp-1", "employee")

	rec := env.do(t, http.MethodPost, "/api/submissions/hours", token, LogHoursRequest{
		Date: "2026-01-10", StartTime: "09:05", EndTime: "12:00", IsWeekend: true, Preview: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Declared weekend work: full credit for the rounded interval.
	preview := decode[PreviewDTO](t, rec)
	assert.Equal(t, "09:00", preview.RoundedStart)
	assert.Equal(t, "12:00", preview.RoundedEnd)
	assert.Equal(t, 180, preview.EarnedMinutes)

	list := env.do(t, http.MethodGet, "/api/submissions", token, nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Empty(t, decode[[]SubmissionDTO](t, list))
}

func TestRequestTimeOffWithoutBalanceIsRejected(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "emp-1", "employee")

	rec := env.do(t, http.MethodPost, "/api/submissions/requests", token, UseRequest{
		Date: "2026-02-02", AmountMinutes: 60,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestApprovalLifecycle(t *testing.T) {
	env := newTestEnv(t)
	empToken := tokenFor(t, "emp-1", "employee")
	mgrToken := tokenFor(t, "mgr-1", "manager")

	// Employee logs weekend hours.
	created := env.do(t, http.MethodPost, "/api/submissions/hours", empToken, LogHoursRequest{
		Date: "2026-01-10", StartTime: "10:00", EndTime: "13:00", IsWeekend: true,
	})
	require.Equal(t, http.StatusCreated, created.Code)
	subID := decode[SubmissionDTO](t, created).ID

	// Manager sees it in the pending queue.
	pending := env.do(t, http.MethodGet, "/api/submissions/pending", mgrToken, nil)
	require.Equal(t, http.StatusOK, pending.Code)
	require.Len(t, decode[[]SubmissionDTO](t, pending), 1)

	// Manager approves with a note.
	approved := env.do(t, http.MethodPost, "/api/submissions/"+subID+"/approve", mgrToken,
		DecideRequest{Note: "Thanks for covering"})
	require.Equal(t, http.StatusOK, approved.Code)
	assert.Equal(t, "Approved", decode[SubmissionDTO](t, approved).Status)

	// Balance now reflects the earn.
	balance := env.do(t, http.MethodGet, "/api/balance", empToken, nil)
	require.Equal(t, http.StatusOK, balance.Code)
	assert.Equal(t, 180, decode[BalanceDTO](t, balance).BalanceMinutes)

	// A second decision conflicts.
	rejected := env.do(t, http.MethodPost, "/api/submissions/"+subID+"/reject", mgrToken, nil)
	assert.Equal(t, http.StatusConflict, rejected.Code)
}

func TestEmployeeCannotApprove(t *testing.T) {
	env := newTestEnv(t)
	empToken := tokenFor(t, "emp-1", "employee")

	created := env.do(t, http.MethodPost, "/api/submissions/hours", empToken, LogHoursRequest{
		Date: "2026-01-10", StartTime: "10:00", EndTime: "12:00", IsWeekend: true,
	})
	require.Equal(t, http.StatusCreated, created.Code)
	subID := decode[SubmissionDTO](t, created).ID

	rec := env.do(t, http.MethodPost, "/api/submissions/"+subID+"/approve", empToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	pending := env.do(t, http.MethodGet, "/api/submissions/pending", empToken, nil)
	assert.Equal(t, http.StatusForbidden, pending.Code)
}

func TestBalanceVisibility(t *testing.T) {
	env := newTestEnv(t)
	empToken := tokenFor(t, "emp-1", "employee")

	// An employee cannot read another user's balance.
	rec := env.do(t, http.MethodGet, "/api/balance?user_id=mgr-1", empToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The manager can read a direct report's.
	mgrToken := tokenFor(t, "mgr-1", "manager")
	rec = env.do(t, http.MethodGet, "/api/balance?user_id=emp-1", mgrToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// TEAM & REPORTS
// =============================================================================

func TestTeamBalancesIncludeQuietMembers(t *testing.T) {
	env := newTestEnv(t)
	mgrToken := tokenFor(t, "mgr-1", "manager")

	rec := env.do(t, http.MethodGet, "/api/team/balances", mgrToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rows := decode[[]TeamBalanceDTO](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "emp-1", rows[0].User.ID)
	assert.Equal(t, 0, rows[0].BalanceMinutes)
	assert.Equal(t, "0:00", rows[0].Balance)
}

func TestMonthlyReport(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "emp-1", "employee")

	rec := env.do(t, http.MethodGet, "/api/reports/monthly?months=3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[MonthlyReportDTO](t, rec).Series, 3)
}

func TestStatementPDF(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, "emp-1", "employee")

	rec := env.do(t, http.MethodGet, "/api/reports/statement.pdf", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/users", tokenFor(t, "mgr-1", "manager"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/users", tokenFor(t, "adm-1", "admin"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]UserDTO](t, rec), 3)
}

func TestAdminCreatesUserAndAudits(t *testing.T) {
	env := newTestEnv(t)
	admToken := tokenFor(t, "adm-1", "admin")

	rec := env.do(t, http.MethodPost, "/api/admin/users", admToken, CreateUserRequest{
		Name: "New Nia", Email: "nia@example.com", Password: "secret-pass", Role: "employee",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[UserDTO](t, rec)
	assert.Equal(t, "employee", created.Role)

	audit := env.do(t, http.MethodGet, "/api/admin/audit", admToken, nil)
	require.Equal(t, http.StatusOK, audit.Code)
	entries := decode[[]AuditEntryDTO](t, audit)
	require.NotEmpty(t, entries)
	assert.Equal(t, "user_created", entries[0].Action)
}

func TestAdminUpdatesUser(t *testing.T) {
	env := newTestEnv(t)
	admToken := tokenFor(t, "adm-1", "admin")

	// Promote Eve and detach her from Max.
	empty := ""
	rec := env.do(t, http.MethodPut, "/api/admin/users/emp-1", admToken,
		UpdateUserRequest{Role: "manager", ManagerID: &empty})
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decode[UserDTO](t, rec)
	assert.Equal(t, "manager", updated.Role)
	assert.Nil(t, updated.ManagerID)
	assert.Equal(t, "Eve Employee", updated.Name, "unset fields keep their value")

	rec = env.do(t, http.MethodPut, "/api/admin/users/ghost", admToken,
		UpdateUserRequest{Name: "Nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUpdatesSettings(t *testing.T) {
	env := newTestEnv(t)
	admToken := tokenFor(t, "adm-1", "admin")

	policy := toil.DefaultPolicy()
	policy.MaxBalanceMinutes = 2400

	rec := env.do(t, http.MethodPut, "/api/admin/settings", admToken,
		SettingsDTO{Name: "Acme Ltd", Policy: policy})
	require.Equal(t, http.StatusOK, rec.Code)

	// New submissions pick up the updated policy.
	assert.Equal(t, 2400, env.service.Policy().MaxBalanceMinutes)

	get := env.do(t, http.MethodGet, "/api/admin/settings", admToken, nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "Acme Ltd", decode[SettingsDTO](t, get).Name)
}

func TestSettingsUpdateIsSafeDuringSubmissions(t *testing.T) {
	// Policy writes through the settings endpoint must not race with
	// requests reading the policy; the race detector fails this test if
	// either side bypasses the snapshot accessors.
	env := newTestEnv(t)
	admToken := tokenFor(t, "adm-1", "admin")
	empToken := tokenFor(t, "emp-1", "employee")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		policy := toil.DefaultPolicy()
		policy.MaxBalanceMinutes = 1000 + i

		wg.Add(2)
		go func(p toil.Policy) {
			defer wg.Done()
			env.do(t, http.MethodPut, "/api/admin/settings", admToken,
				SettingsDTO{Name: "Acme Ltd", Policy: p})
		}(policy)
		go func() {
			defer wg.Done()
			env.do(t, http.MethodPost, "/api/submissions/hours", empToken, LogHoursRequest{
				Date: "2026-01-10", StartTime: "09:00", EndTime: "10:00",
				IsWeekend: true, Preview: true,
			})
		}()
	}
	wg.Wait()
}

func TestAdminRejectsInvalidSettings(t *testing.T) {
	env := newTestEnv(t)
	admToken := tokenFor(t, "adm-1", "admin")

	policy := toil.DefaultPolicy()
	policy.GridMinutes = 90 // over an hour

	rec := env.do(t, http.MethodPut, "/api/admin/settings", admToken,
		SettingsDTO{Name: "Acme Ltd", Policy: policy})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminManagesDepartments(t *testing.T) {
	env := newTestEnv(t)
	admToken := tokenFor(t, "adm-1", "admin")

	created := env.do(t, http.MethodPost, "/api/admin/departments", admToken,
		CreateDepartmentRequest{Name: "Engineering"})
	require.Equal(t, http.StatusCreated, created.Code)
	dep := decode[DepartmentDTO](t, created)

	list := env.do(t, http.MethodGet, "/api/admin/departments", admToken, nil)
	require.Equal(t, http.StatusOK, list.Code)
	require.Len(t, decode[[]DepartmentDTO](t, list), 1)

	del := env.do(t, http.MethodDelete, "/api/admin/departments/"+dep.ID, admToken, nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	del = env.do(t, http.MethodDelete, "/api/admin/departments/"+dep.ID, admToken, nil)
	assert.Equal(t, http.StatusNotFound, del.Code)
}
