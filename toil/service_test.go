package toil_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill/toil-tracker/engine"
	"github.com/quill/toil-tracker/toil"
	"github.com/quill/toil-tracker/toil/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*toil.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := toil.NewService(mem, mem, toil.DefaultPolicy())

	ctx := context.Background()
	managerID := "mgr-1"
	require.NoError(t, mem.CreateUser(ctx, toil.User{ID: "mgr-1", Name: "Morgan", Role: toil.RoleManager}))
	require.NoError(t, mem.CreateUser(ctx, toil.User{ID: "emp-1", Name: "Avery", Role: toil.RoleEmployee, ManagerID: &managerID}))
	require.NoError(t, mem.CreateUser(ctx, toil.User{ID: "emp-2", Name: "Blake", Role: toil.RoleEmployee, ManagerID: &managerID}))
	require.NoError(t, mem.CreateUser(ctx, toil.User{ID: "mgr-2", Name: "Robin", Role: toil.RoleManager}))
	require.NoError(t, mem.CreateUser(ctx, toil.User{ID: "adm-1", Name: "Sasha", Role: toil.RoleAdmin}))

	return svc, mem
}

var (
	employee     = toil.Actor{ID: "emp-1", Role: toil.RoleEmployee}
	teammate     = toil.Actor{ID: "emp-2", Role: toil.RoleEmployee}
	manager      = toil.Actor{ID: "mgr-1", Role: toil.RoleManager}
	otherManager = toil.Actor{ID: "mgr-2", Role: toil.RoleManager}
	admin        = toil.Actor{ID: "adm-1", Role: toil.RoleAdmin}
)

func weekday() time.Time { return time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC) }

func logOvertime(t *testing.T, svc *toil.Service, actor toil.Actor) *engine.Submission {
	t.Helper()
	sub, err := svc.LogExtraHours(context.Background(), actor, toil.HoursInput{
		Date:      weekday(),
		StartTime: "09:05",
		EndTime:   "19:02",
		IsWeekend: false,
		Project:   "Client X Rollout",
	})
	require.NoError(t, err)
	return sub
}

// =============================================================================
// EARN FLOW
// =============================================================================

func TestLogExtraHours_CreatesPendingWithRoundedEarn(t *testing.T) {
	// GIVEN: 09:05-19:02 on a weekday
	// WHEN: Logging extra hours
	// THEN: A Pending earn submission for 130 minutes (610 rounded - 480 contracted)

	svc, _ := newTestService(t)
	sub := logOvertime(t, svc, employee)

	assert.Equal(t, engine.SubmissionEarn, sub.Type)
	assert.Equal(t, engine.StatusPending, sub.Status)
	assert.Equal(t, 130, sub.AmountMinutes)
	assert.Equal(t, "emp-1", sub.UserID)
}

func TestLogExtraHours_ZeroEarnRejected(t *testing.T) {
	// GIVEN: A weekday interval exactly at the contracted threshold
	// WHEN: Logging
	// THEN: Validation error, nothing persisted

	svc, mem := newTestService(t)
	_, err := svc.LogExtraHours(context.Background(), employee, toil.HoursInput{
		Date:      weekday(),
		StartTime: "09:00",
		EndTime:   "17:00",
	})
	require.ErrorIs(t, err, engine.ErrValidation)

	subs, err := mem.ListSubmissionsByUser(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestLogExtraHours_MalformedTimeRejected(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.LogExtraHours(context.Background(), employee, toil.HoursInput{
		Date:      weekday(),
		StartTime: "nine",
		EndTime:   "17:00",
	})
	assert.ErrorIs(t, err, engine.ErrValidation)

	// The error names the form field exactly once.
	assert.Equal(t, `start_time: invalid time "nine", expected HH:MM`, err.Error())
}

func TestLogExtraHours_BalanceCap(t *testing.T) {
	// GIVEN: A 3-hour cap and an approved 2-hour earn already banked
	// WHEN: Logging another 2 weekend hours
	// THEN: BalanceCapError before anything is persisted

	mem := store.NewMemory()
	policy := toil.DefaultPolicy()
	policy.MaxBalanceMinutes = 180
	svc := toil.NewService(mem, mem, policy)

	ctx := context.Background()
	require.NoError(t, mem.CreateUser(ctx, toil.User{ID: "emp-1", Name: "Avery", Role: toil.RoleEmployee}))
	require.NoError(t, mem.CreateSubmission(ctx, engine.Submission{
		ID: "s1", UserID: "emp-1", Type: engine.SubmissionEarn,
		Date: weekday(), AmountMinutes: 120, Status: engine.StatusApproved,
	}))

	_, err := svc.LogExtraHours(ctx, employee, toil.HoursInput{
		Date:      weekday(),
		StartTime: "09:00",
		EndTime:   "11:00",
		IsWeekend: true,
	})
	require.ErrorIs(t, err, engine.ErrBalanceCapExceeded)

	var capErr *engine.BalanceCapError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 180, capErr.CapMinutes)
	assert.Equal(t, 240, capErr.Projected)
}

// =============================================================================
// USE FLOW
// =============================================================================

func TestRequestTimeOff_GuardBlocksOverWithdrawal(t *testing.T) {
	// GIVEN: An approved balance of 100 minutes
	// WHEN: Requesting 150 minutes off
	// THEN: InsufficientBalance and the request is never written

	svc, mem := newTestService(t)
	ctx := context.Background()
	require.NoError(t, mem.CreateSubmission(ctx, engine.Submission{
		ID: "s1", UserID: "emp-1", Type: engine.SubmissionEarn,
		Date: weekday(), AmountMinutes: 100, Status: engine.StatusApproved,
	}))

	_, err := svc.RequestTimeOff(ctx, employee, toil.UseInput{Date: weekday(), AmountMinutes: 150})
	require.ErrorIs(t, err, engine.ErrInsufficientBalance)

	var insErr *engine.InsufficientBalanceError
	require.ErrorAs(t, err, &insErr)
	assert.Equal(t, 100, insErr.Available)
	assert.Equal(t, 150, insErr.Requested)

	subs, err := mem.ListSubmissionsByUser(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1, "the use request must not be persisted")
}

func TestRequestTimeOff_WithinBalance(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	require.NoError(t, mem.CreateSubmission(ctx, engine.Submission{
		ID: "s1", UserID: "emp-1", Type: engine.SubmissionEarn,
		Date: weekday(), AmountMinutes: 480, Status: engine.StatusApproved,
	}))

	sub, err := svc.RequestTimeOff(ctx, employee, toil.UseInput{Date: weekday(), AmountMinutes: 240})
	require.NoError(t, err)
	assert.Equal(t, engine.SubmissionUse, sub.Type)
	assert.Equal(t, engine.StatusPending, sub.Status)

	// Pending use does not reduce the balance until approved.
	balance, err := svc.Balance(ctx, employee, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 480, balance)
}

func TestRequestTimeOff_NonPositiveAmount(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RequestTimeOff(context.Background(), employee, toil.UseInput{Date: weekday(), AmountMinutes: 0})
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// =============================================================================
// APPROVAL FLOW
// =============================================================================

func TestDecide_ManagerApprovesDirectReport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sub := logOvertime(t, svc, employee)

	decided, err := svc.Decide(ctx, manager, sub.ID, true, "looks right")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusApproved, decided.Status)
	assert.Equal(t, "looks right", decided.ManagerNote)

	balance, err := svc.Balance(ctx, employee, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 130, balance)
}

func TestDecide_SingleUse(t *testing.T) {
	// GIVEN: A submission already approved
	// WHEN: Deciding it again (either way)
	// THEN: ErrInvalidStateTransition, not a silent no-op

	svc, _ := newTestService(t)
	ctx := context.Background()
	sub := logOvertime(t, svc, employee)

	_, err := svc.Decide(ctx, manager, sub.ID, true, "")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, manager, sub.ID, true, "")
	assert.ErrorIs(t, err, engine.ErrInvalidStateTransition)

	_, err = svc.Decide(ctx, manager, sub.ID, false, "")
	assert.ErrorIs(t, err, engine.ErrInvalidStateTransition)
}

func TestDecide_Permissions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("employee cannot decide", func(t *testing.T) {
		sub := logOvertime(t, svc, employee)
		_, err := svc.Decide(ctx, teammate, sub.ID, true, "")
		assert.ErrorIs(t, err, engine.ErrForbidden)
	})

	t.Run("manager of another team cannot decide", func(t *testing.T) {
		sub := logOvertime(t, svc, employee)
		_, err := svc.Decide(ctx, otherManager, sub.ID, true, "")
		assert.ErrorIs(t, err, engine.ErrForbidden)
	})

	t.Run("admin can decide anyone", func(t *testing.T) {
		sub := logOvertime(t, svc, employee)
		_, err := svc.Decide(ctx, admin, sub.ID, false, "duplicate entry")
		assert.NoError(t, err)
	})

	t.Run("nobody decides their own", func(t *testing.T) {
		mgrEarn, err := svc.LogExtraHours(ctx, manager, toil.HoursInput{
			Date: weekday(), StartTime: "09:00", EndTime: "12:00", IsWeekend: true,
		})
		require.NoError(t, err)
		_, err = svc.Decide(ctx, manager, mgrEarn.ID, true, "")
		assert.ErrorIs(t, err, engine.ErrForbidden)
	})
}

func TestDecide_RejectedNeverCounts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sub := logOvertime(t, svc, employee)

	_, err := svc.Decide(ctx, manager, sub.ID, false, "not pre-agreed")
	require.NoError(t, err)

	balance, err := svc.Balance(ctx, employee, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestPendingForActor_ScopedToTeam(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	logOvertime(t, svc, employee)
	logOvertime(t, svc, teammate)

	pending, err := svc.PendingForActor(ctx, manager)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	pending, err = svc.PendingForActor(ctx, otherManager)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = svc.PendingForActor(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = svc.PendingForActor(ctx, employee)
	assert.ErrorIs(t, err, engine.ErrForbidden)
}

// =============================================================================
// VIEWS
// =============================================================================

func TestTeamBalances_OneEntryPerReport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sub := logOvertime(t, svc, employee)
	_, err := svc.Decide(ctx, manager, sub.ID, true, "")
	require.NoError(t, err)

	rows, err := svc.TeamBalances(ctx, manager)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]int{}
	for _, r := range rows {
		byID[r.User.ID] = r.BalanceMinutes
	}
	assert.Equal(t, 130, byID["emp-1"])
	assert.Equal(t, 0, byID["emp-2"], "report with no history still gets a zero row")
}

func TestBalance_Visibility(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Balance(ctx, teammate, "emp-1")
	assert.ErrorIs(t, err, engine.ErrForbidden)

	_, err = svc.Balance(ctx, otherManager, "emp-1")
	assert.ErrorIs(t, err, engine.ErrForbidden)

	_, err = svc.Balance(ctx, manager, "emp-1")
	assert.NoError(t, err)

	_, err = svc.Balance(ctx, admin, "emp-1")
	assert.NoError(t, err)
}

func TestBalance_ExpiryWindow(t *testing.T) {
	// GIVEN: A 90-day expiry policy and an earn approved 120 days ago
	// WHEN: Computing the balance today
	// THEN: The aged-out earn no longer counts

	mem := store.NewMemory()
	policy := toil.DefaultPolicy()
	policy.ExpiryDays = 90
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	svc := toil.NewService(mem, mem, policy).WithClock(func() time.Time { return now })

	ctx := context.Background()
	require.NoError(t, mem.CreateUser(ctx, toil.User{ID: "emp-1", Name: "Avery", Role: toil.RoleEmployee}))
	require.NoError(t, mem.CreateSubmission(ctx, engine.Submission{
		ID: "old", UserID: "emp-1", Type: engine.SubmissionEarn,
		Date: now.AddDate(0, 0, -120), AmountMinutes: 300, Status: engine.StatusApproved,
	}))
	require.NoError(t, mem.CreateSubmission(ctx, engine.Submission{
		ID: "recent", UserID: "emp-1", Type: engine.SubmissionEarn,
		Date: now.AddDate(0, 0, -5), AmountMinutes: 60, Status: engine.StatusApproved,
	}))

	balance, err := svc.Balance(ctx, employee, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 60, balance)
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestAuditTrail_RecordsLifecycle(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	sub := logOvertime(t, svc, employee)
	_, err := svc.Decide(ctx, manager, sub.ID, true, "")
	require.NoError(t, err)

	entries, err := mem.ListAudit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	actions := map[toil.AuditAction]bool{}
	for _, e := range entries {
		actions[e.Action] = true
		assert.Equal(t, sub.ID, e.SubmissionID)
	}
	assert.True(t, actions[toil.AuditSubmissionCreated])
	assert.True(t, actions[toil.AuditSubmissionApproved])
}

// =============================================================================
// POLICY PARSING
// =============================================================================

func TestParsePolicy(t *testing.T) {
	p, err := toil.ParsePolicy([]byte(`{"contracted_minutes": 450, "expiry_days": 365}`))
	require.NoError(t, err)
	assert.Equal(t, 450, p.ContractedMinutes)
	assert.Equal(t, 15, p.GridMinutes, "unset fields fall back to defaults")
	assert.Equal(t, 365, p.ExpiryDays)

	_, err = toil.ParsePolicy([]byte(`{"grid_minutes": -1}`))
	assert.Error(t, err)

	_, err = toil.ParsePolicy([]byte(`{broken`))
	assert.Error(t, err)
}
