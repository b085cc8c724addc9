/*
service.go - TOIL submission lifecycle

PURPOSE:
  Orchestrates the flows around the engine:

  Earn:  user logs an interval -> Normalize -> Classify -> Pending
         earn submission (rejected up front if it earns nothing, or if it
         would blow through the balance cap once approved).

  Use:   user requests time off -> current balance -> ProjectBalance ->
         Pending use submission, or InsufficientBalance. The guard runs
         BEFORE anything is persisted; an over-withdrawal never reaches
         the store.

  Decide: a manager approves or rejects a Pending submission of a direct
         report (admins may decide any). The store applies the transition
         with compare-and-set, so concurrent decisions lose cleanly.

IDENTITY:
  Every operation takes an explicit Actor. There is no ambient session
  state in this layer; the HTTP layer resolves the token into an Actor
  and passes it down.
*/
package toil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quill/toil-tracker/engine"
)

// Actor is the acting identity, resolved by the caller (e.g. from a JWT).
type Actor struct {
	ID   string
	Role Role
}

// Service wires the engine to a Store and an AuditLog.
type Service struct {
	Store Store
	Audit AuditLog

	// policy is read per request and replaceable at runtime through the
	// settings endpoint, so access goes through Policy/SetPolicy.
	mu     sync.RWMutex
	policy Policy

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// NewService creates a Service with the given dependencies.
func NewService(store Store, audit AuditLog, policy Policy) *Service {
	return &Service{Store: store, Audit: audit, policy: policy, now: time.Now}
}

// Policy returns a snapshot of the current policy.
func (s *Service) Policy() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// SetPolicy replaces the policy. Requests already in flight finish
// under the snapshot they took.
func (s *Service) SetPolicy(p Policy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// =============================================================================
// EARN FLOW - Log extra hours
// =============================================================================

// HoursInput is the raw logging-form payload.
type HoursInput struct {
	Date      time.Time
	StartTime string
	EndTime   string
	IsWeekend bool
	Project   string
	Notes     string
}

// EarnPreview is what the form shows before submitting: the rounded
// interval and the minutes it would earn.
type EarnPreview struct {
	Normalized engine.NormalizedInterval
	Earned     int
}

// PreviewHours computes the rounded interval and earned minutes without
// persisting anything.
func (s *Service) PreviewHours(in HoursInput) (*EarnPreview, error) {
	start, err := engine.ParseClock(in.StartTime)
	if err != nil {
		return nil, fieldErr("start_time", err)
	}
	end, err := engine.ParseClock(in.EndTime)
	if err != nil {
		return nil, fieldErr("end_time", err)
	}

	policy := s.Policy()
	norm := engine.Normalize(engine.WorkInterval{
		Date:      in.Date,
		Start:     start,
		End:       end,
		IsWeekend: in.IsWeekend,
	}, policy.GridMinutes)

	acc := engine.Classify(norm, in.IsWeekend, policy.ContractedMinutes)
	return &EarnPreview{Normalized: norm, Earned: acc.EarnedMinutes}, nil
}

// fieldErr renames a parse error to the submitting form field without
// stacking a second prefix on the message.
func fieldErr(field string, err error) error {
	var fe *engine.FieldError
	if errors.As(err, &fe) {
		return &engine.FieldError{Field: field, Message: fe.Message}
	}
	return err
}

// LogExtraHours validates and persists a Pending earn submission for the
// acting user.
func (s *Service) LogExtraHours(ctx context.Context, actor Actor, in HoursInput) (*engine.Submission, error) {
	if in.Date.IsZero() {
		return nil, &engine.FieldError{Field: "date", Message: "date is required"}
	}

	preview, err := s.PreviewHours(in)
	if err != nil {
		return nil, err
	}
	if preview.Earned <= 0 {
		return nil, &engine.FieldError{Field: "interval", Message: "interval earns no TOIL"}
	}

	// Cap check: an earn that could not be approved without exceeding the
	// organization's maximum is rejected at submission time.
	if maxBalance := s.Policy().MaxBalanceMinutes; maxBalance > 0 {
		balance, err := s.balanceOf(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		projected := engine.ProjectBalance(balance, engine.SubmissionEarn, preview.Earned)
		if projected > maxBalance {
			return nil, &engine.BalanceCapError{
				UserID:     actor.ID,
				CapMinutes: maxBalance,
				Projected:  projected,
			}
		}
	}

	sub := engine.Submission{
		ID:            uuid.NewString(),
		UserID:        actor.ID,
		Type:          engine.SubmissionEarn,
		Date:          in.Date,
		AmountMinutes: preview.Earned,
		Status:        engine.StatusPending,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Project:       in.Project,
		Notes:         in.Notes,
		CreatedAt:     s.now(),
	}

	if err := s.Store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("create earn submission: %w", err)
	}
	s.audit(ctx, actor.ID, AuditSubmissionCreated, sub.ID, actor.ID,
		fmt.Sprintf("earn %s on %s", engine.FormatMinutes(sub.AmountMinutes), sub.Date.Format("2006-01-02")))

	return &sub, nil
}

// =============================================================================
// USE FLOW - Request time off
// =============================================================================

// UseInput is the time-off request payload.
type UseInput struct {
	Date          time.Time
	AmountMinutes int
	Notes         string
}

// RequestTimeOff validates a use request against the current balance and
// persists it as Pending. An over-withdrawal is rejected before anything
// is written.
func (s *Service) RequestTimeOff(ctx context.Context, actor Actor, in UseInput) (*engine.Submission, error) {
	if in.Date.IsZero() {
		return nil, &engine.FieldError{Field: "date", Message: "date is required"}
	}
	if in.AmountMinutes <= 0 {
		return nil, &engine.FieldError{Field: "amount", Message: "amount must be positive"}
	}

	balance, err := s.balanceOf(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if engine.ProjectBalance(balance, engine.SubmissionUse, in.AmountMinutes) < 0 {
		return nil, &engine.InsufficientBalanceError{
			UserID:    actor.ID,
			Available: balance,
			Requested: in.AmountMinutes,
		}
	}

	sub := engine.Submission{
		ID:            uuid.NewString(),
		UserID:        actor.ID,
		Type:          engine.SubmissionUse,
		Date:          in.Date,
		AmountMinutes: in.AmountMinutes,
		Status:        engine.StatusPending,
		Notes:         in.Notes,
		CreatedAt:     s.now(),
	}

	if err := s.Store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("create use submission: %w", err)
	}
	s.audit(ctx, actor.ID, AuditSubmissionCreated, sub.ID, actor.ID,
		fmt.Sprintf("use %s on %s", engine.FormatMinutes(sub.AmountMinutes), sub.Date.Format("2006-01-02")))

	return &sub, nil
}

// =============================================================================
// APPROVAL FLOW
// =============================================================================

// Decide transitions a Pending submission to Approved or Rejected.
// Only the owner's manager or an admin may decide; the transition is
// applied by the store with compare-and-set semantics.
func (s *Service) Decide(ctx context.Context, actor Actor, submissionID string, approve bool, managerNote string) (*engine.Submission, error) {
	sub, err := s.Store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	if err := s.canDecide(ctx, actor, sub.UserID); err != nil {
		return nil, err
	}

	target := engine.StatusRejected
	action := AuditSubmissionRejected
	if approve {
		target = engine.StatusApproved
		action = AuditSubmissionApproved
	}

	// Fast-fail on an already-decided submission; the store repeats the
	// check atomically for the concurrent case.
	if err := engine.ValidateTransition(sub.ID, sub.Status, target); err != nil {
		return nil, err
	}

	if err := s.Store.UpdateSubmissionStatus(ctx, sub.ID, target, managerNote); err != nil {
		return nil, err
	}

	sub.Status = target
	sub.ManagerNote = managerNote
	s.audit(ctx, actor.ID, action, sub.ID, sub.UserID, managerNote)

	return sub, nil
}

// canDecide enforces the approval capability: admins decide anything,
// managers decide their direct reports only, nobody decides their own.
func (s *Service) canDecide(ctx context.Context, actor Actor, ownerID string) error {
	if !actor.Role.CanApprove() {
		return engine.ErrForbidden
	}
	if actor.ID == ownerID {
		return engine.ErrForbidden
	}
	if actor.Role == RoleAdmin {
		return nil
	}

	owner, err := s.Store.GetUser(ctx, ownerID)
	if err != nil {
		return err
	}
	if owner.ManagerID == nil || *owner.ManagerID != actor.ID {
		return engine.ErrForbidden
	}
	return nil
}

// PendingForActor lists Pending submissions the actor may decide:
// direct reports for a manager, everything for an admin.
func (s *Service) PendingForActor(ctx context.Context, actor Actor) ([]engine.Submission, error) {
	if !actor.Role.CanApprove() {
		return nil, engine.ErrForbidden
	}

	pending, err := s.Store.ListSubmissionsByStatus(ctx, engine.StatusPending)
	if err != nil {
		return nil, err
	}
	if actor.Role == RoleAdmin {
		return pending, nil
	}

	reports, err := s.Store.ListUsersByManager(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	team := make(map[string]bool, len(reports))
	for _, u := range reports {
		team[u.ID] = true
	}

	var scoped []engine.Submission
	for _, sub := range pending {
		if team[sub.UserID] {
			scoped = append(scoped, sub)
		}
	}
	return scoped, nil
}

// =============================================================================
// BALANCE & HISTORY VIEWS
// =============================================================================

// Balance returns the TOIL balance for userID, subject to visibility:
// employees see their own, managers their own and direct reports',
// admins anyone's.
func (s *Service) Balance(ctx context.Context, actor Actor, userID string) (int, error) {
	if err := s.canView(ctx, actor, userID); err != nil {
		return 0, err
	}
	return s.balanceOf(ctx, userID)
}

// History returns a user's submission history, subject to the same
// visibility rules as Balance.
func (s *Service) History(ctx context.Context, actor Actor, userID string) ([]engine.Submission, error) {
	if err := s.canView(ctx, actor, userID); err != nil {
		return nil, err
	}
	return s.Store.ListSubmissionsByUser(ctx, userID)
}

// TeamBalance is one row of a manager's team overview.
type TeamBalance struct {
	User           User
	BalanceMinutes int
}

// TeamBalances returns one balance per direct report of the acting
// manager (or all users for an admin). Members with no history report 0.
func (s *Service) TeamBalances(ctx context.Context, actor Actor) ([]TeamBalance, error) {
	if !actor.Role.CanApprove() {
		return nil, engine.ErrForbidden
	}

	var members []User
	var err error
	if actor.Role == RoleAdmin {
		members, err = s.Store.ListUsers(ctx)
	} else {
		members, err = s.Store.ListUsersByManager(ctx, actor.ID)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(members))
	for i, u := range members {
		ids[i] = u.ID
	}

	subs, err := s.Store.ListSubmissionsByUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	balances := engine.AggregateForTeam(subs, ids)
	out := make([]TeamBalance, len(members))
	for i, u := range members {
		out[i] = TeamBalance{User: u, BalanceMinutes: balances[u.ID]}
	}
	return out, nil
}

func (s *Service) canView(ctx context.Context, actor Actor, userID string) error {
	if actor.ID == userID || actor.Role == RoleAdmin {
		return nil
	}
	if actor.Role == RoleManager {
		target, err := s.Store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if target.ManagerID != nil && *target.ManagerID == actor.ID {
			return nil
		}
	}
	return engine.ErrForbidden
}

func (s *Service) balanceOf(ctx context.Context, userID string) (int, error) {
	subs, err := s.Store.ListSubmissionsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return engine.ComputeBalanceAsOf(subs, userID, s.now(), s.Policy().ExpiryDays), nil
}

func (s *Service) audit(ctx context.Context, actorID string, action AuditAction, submissionID, subjectID, detail string) {
	if s.Audit == nil {
		return
	}
	// Audit failures are logged by the implementation, never block the flow.
	_ = s.Audit.AppendAudit(ctx, AuditEntry{
		ID:           uuid.NewString(),
		At:           s.now(),
		ActorID:      actorID,
		Action:       action,
		SubmissionID: submissionID,
		SubjectID:    subjectID,
		Detail:       detail,
	})
}
