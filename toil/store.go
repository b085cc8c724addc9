/*
store.go - Persistence interfaces for the TOIL domain

PURPOSE:
  Defines the boundary between domain logic and the database. The engine
  never performs I/O; the Service reads submission lists through these
  interfaces and hands them to the engine. Implementations exist for
  SQLite (store/sqlite), PostgreSQL (store/postgres), and memory
  (toil/store, for tests and development).

COMPARE-AND-SET:
  UpdateStatus is the one mutation with concurrency teeth: two managers
  can race to decide the same submission. Implementations must apply the
  Pending -> {Approved|Rejected} transition atomically, succeeding only
  while the row is still Pending, and return
  engine.ErrInvalidStateTransition otherwise. The losing manager sees
  "already decided", never a silent overwrite.

OWNERSHIP MODEL:
  Users carry two independent optional relations: ManagerID (who approves
  their submissions, flat one-level hierarchy) and DepartmentID (grouping
  only, no part in balance computation). The two are deliberately not
  collapsed into one hierarchy.
*/
package toil

import (
	"context"
	"time"

	"github.com/quill/toil-tracker/engine"
)

// =============================================================================
// USERS & DEPARTMENTS
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// CanApprove reports whether the role may decide submissions at all.
func (r Role) CanApprove() bool { return r == RoleManager || r == RoleAdmin }

// User is an account in the tracker. ManagerID and DepartmentID are
// orthogonal optional many-to-one relations; nil means unassigned.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         Role
	PasswordHash string
	ManagerID    *string
	DepartmentID *string
	CreatedAt    time.Time
}

// Department groups users for display and reporting. It plays no part in
// balance computation or approval routing.
type Department struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// OrgSettings is the per-organization configuration record.
type OrgSettings struct {
	Name      string
	Policy    Policy
	UpdatedAt time.Time
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// SubmissionStore persists submission records. The store never computes
// balances; it returns lists and the engine does the arithmetic.
type SubmissionStore interface {
	// CreateSubmission persists a new record. The caller sets Status;
	// the Service always creates Pending.
	CreateSubmission(ctx context.Context, s engine.Submission) error

	// GetSubmission returns one submission, or engine.ErrNotFound.
	GetSubmission(ctx context.Context, id string) (*engine.Submission, error)

	// ListSubmissionsByUser returns a user's full history, newest first.
	ListSubmissionsByUser(ctx context.Context, userID string) ([]engine.Submission, error)

	// ListSubmissionsByUsers returns all submissions for a set of users.
	ListSubmissionsByUsers(ctx context.Context, userIDs []string) ([]engine.Submission, error)

	// ListSubmissionsByStatus returns all submissions in a given status.
	ListSubmissionsByStatus(ctx context.Context, status engine.Status) ([]engine.Submission, error)

	// UpdateSubmissionStatus applies Pending -> to with compare-and-set
	// semantics. Returns engine.ErrInvalidStateTransition if the
	// submission is no longer Pending, engine.ErrNotFound if it does
	// not exist.
	UpdateSubmissionStatus(ctx context.Context, id string, to engine.Status, managerNote string) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListUsersByManager(ctx context.Context, managerID string) ([]User, error)
	UpdateUser(ctx context.Context, u User) error
}

// DepartmentStore persists departments.
type DepartmentStore interface {
	CreateDepartment(ctx context.Context, d Department) error
	ListDepartments(ctx context.Context) ([]Department, error)
	DeleteDepartment(ctx context.Context, id string) error
}

// SettingsStore persists organization settings.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*OrgSettings, error)
	SaveSettings(ctx context.Context, s OrgSettings) error
}

// Store is the full persistence surface the Service needs.
type Store interface {
	SubmissionStore
	UserStore
	DepartmentStore
	SettingsStore
}

// =============================================================================
// AUDIT LOG - Who did what, when. Append-only.
// =============================================================================

type AuditAction string

const (
	AuditSubmissionCreated  AuditAction = "submission_created"
	AuditSubmissionApproved AuditAction = "submission_approved"
	AuditSubmissionRejected AuditAction = "submission_rejected"
	AuditUserCreated        AuditAction = "user_created"
	AuditSettingsChanged    AuditAction = "settings_changed"
)

// AuditEntry records one actor action against one submission or user.
type AuditEntry struct {
	ID           string
	At           time.Time
	ActorID      string
	Action       AuditAction
	SubmissionID string
	SubjectID    string
	Detail       string
}

// AuditLog stores audit entries. Append-only: no update, no delete.
type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}
