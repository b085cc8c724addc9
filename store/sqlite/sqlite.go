/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements toil.Store and toil.AuditLog using SQLite. Suitable for
  single-node deployments and development; store/postgres carries the
  same contract for hosted databases.

KEY TABLES:
  submissions:   Earn/use records with lifecycle status
  users:         Accounts with orthogonal manager/department relations
  departments:   Grouping only, no part in balance computation
  org_settings:  Single-row organization configuration (policy JSON)
  audit_log:     Append-only actor actions

COMPARE-AND-SET:
  Status decisions run as
    UPDATE submissions SET status=? WHERE id=? AND status='Pending'
  Zero rows affected means the submission was decided concurrently (or
  does not exist); the caller gets engine.ErrInvalidStateTransition or
  engine.ErrNotFound accordingly. The losing side of a race never
  overwrites a decision.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block and crash recovery improves.

USAGE:
  store, err := sqlite.New("./data/toil.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - toil/store.go: Interface definitions
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quill/toil-tracker/engine"
	"github.com/quill/toil-tracker/toil"
)

// Store implements toil.Store and toil.AuditLog using SQLite.
type Store struct {
	db *sql.DB
}

var _ toil.Store = (*Store)(nil)
var _ toil.AuditLog = (*Store)(nil)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS departments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		manager_id TEXT REFERENCES users(id),
		department_id TEXT REFERENCES departments(id),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_manager ON users(manager_id);
	CREATE INDEX IF NOT EXISTS idx_users_department ON users(department_id);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		type TEXT NOT NULL CHECK (type IN ('earn', 'use')),
		date TEXT NOT NULL,
		amount_minutes INTEGER NOT NULL CHECK (amount_minutes >= 0),
		status TEXT NOT NULL DEFAULT 'Pending'
			CHECK (status IN ('Pending', 'Approved', 'Rejected')),
		start_time TEXT,
		end_time TEXT,
		project TEXT,
		notes TEXT,
		manager_note TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: balance calculation filters by user and status.
	CREATE INDEX IF NOT EXISTS idx_submissions_user_status
		ON submissions(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_submissions_status
		ON submissions(status);
	CREATE INDEX IF NOT EXISTS idx_submissions_date
		ON submissions(date DESC);

	CREATE TABLE IF NOT EXISTS org_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		name TEXT NOT NULL,
		policy_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		submission_id TEXT,
		subject_id TEXT,
		detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

const submissionCols = `id, user_id, type, date, amount_minutes, status,
	COALESCE(start_time, ''), COALESCE(end_time, ''), COALESCE(project, ''),
	COALESCE(notes, ''), COALESCE(manager_note, ''), created_at`

func (s *Store) CreateSubmission(ctx context.Context, sub engine.Submission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, user_id, type, date, amount_minutes, status,
			start_time, end_time, project, notes, manager_note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, string(sub.Type), sub.Date.Format("2006-01-02"),
		sub.AmountMinutes, string(sub.Status), sub.StartTime, sub.EndTime,
		sub.Project, sub.Notes, sub.ManagerNote, sub.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*engine.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) ListSubmissionsByUser(ctx context.Context, userID string) ([]engine.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM submissions
		 WHERE user_id = ? ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

func (s *Store) ListSubmissionsByUsers(ctx context.Context, userIDs []string) ([]engine.Submission, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(userIDs)-1) + "?"
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM submissions
		 WHERE user_id IN (`+placeholders+`) ORDER BY date DESC, created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

func (s *Store) ListSubmissionsByStatus(ctx context.Context, status engine.Status) ([]engine.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM submissions
		 WHERE status = ? ORDER BY date DESC, created_at DESC`, string(status))
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

// UpdateSubmissionStatus applies Pending -> to atomically. The WHERE
// clause is the compare-and-set: a concurrent decision leaves zero rows
// to update and the caller learns the submission was already decided.
func (s *Store) UpdateSubmissionStatus(ctx context.Context, id string, to engine.Status, managerNote string) error {
	if !engine.CanTransition(engine.StatusPending, to) {
		return engine.ValidateTransition(id, engine.StatusPending, to)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET status = ?, manager_note = ?
		WHERE id = ? AND status = 'Pending'`,
		string(to), managerNote, id)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// Nothing updated: missing row or already decided.
	current, err := s.GetSubmission(ctx, id)
	if err != nil {
		return err
	}
	return &engine.InvalidStateTransitionError{
		SubmissionID: id,
		From:         current.Status,
		To:           to,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(r rowScanner) (*engine.Submission, error) {
	var sub engine.Submission
	var typ, status, date, createdAt string
	err := r.Scan(&sub.ID, &sub.UserID, &typ, &date, &sub.AmountMinutes, &status,
		&sub.StartTime, &sub.EndTime, &sub.Project, &sub.Notes, &sub.ManagerNote, &createdAt)
	if err != nil {
		return nil, err
	}
	sub.Type = engine.SubmissionType(typ)
	sub.Status = engine.Status(status)
	if sub.Date, err = time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("parse submission date: %w", err)
	}
	if sub.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse submission created_at: %w", err)
	}
	return &sub, nil
}

func collectSubmissions(rows *sql.Rows) ([]engine.Submission, error) {
	defer rows.Close()
	var out []engine.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// =============================================================================
// USERS
// =============================================================================

const userCols = `id, name, email, role, password_hash, manager_id, department_id, created_at`

func (s *Store) CreateUser(ctx context.Context, u toil.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, password_hash, manager_id, department_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, string(u.Role), u.PasswordHash,
		u.ManagerID, u.DepartmentID, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*toil.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*toil.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]toil.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *Store) ListUsersByManager(ctx context.Context, managerID string) ([]toil.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users WHERE manager_id = ? ORDER BY name`, managerID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *Store) UpdateUser(ctx context.Context, u toil.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, role = ?, password_hash = ?,
			manager_id = ?, department_id = ?
		WHERE id = ?`,
		u.Name, u.Email, string(u.Role), u.PasswordHash, u.ManagerID, u.DepartmentID, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func scanUser(r rowScanner) (*toil.User, error) {
	var u toil.User
	var role, createdAt string
	err := r.Scan(&u.ID, &u.Name, &u.Email, &role, &u.PasswordHash,
		&u.ManagerID, &u.DepartmentID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = toil.Role(role)
	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	return &u, nil
}

func collectUsers(rows *sql.Rows) ([]toil.User, error) {
	defer rows.Close()
	var out []toil.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// =============================================================================
// DEPARTMENTS
// =============================================================================

func (s *Store) CreateDepartment(ctx context.Context, d toil.Department) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (id, name, created_at) VALUES (?, ?, ?)`,
		d.ID, d.Name, d.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]toil.Department, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []toil.Department
	for rows.Next() {
		var d toil.Department
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Name, &createdAt); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse department created_at: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM departments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// =============================================================================
// ORG SETTINGS - Single-row configuration
// =============================================================================

func (s *Store) GetSettings(ctx context.Context) (*toil.OrgSettings, error) {
	var settings toil.OrgSettings
	var policyJSON, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, policy_json, updated_at FROM org_settings WHERE id = 1`).
		Scan(&settings.Name, &policyJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(policyJSON), &settings.Policy); err != nil {
		return nil, fmt.Errorf("parse policy json: %w", err)
	}
	if settings.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parse settings updated_at: %w", err)
	}
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings toil.OrgSettings) error {
	policyJSON, err := json.Marshal(settings.Policy)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO org_settings (id, name, policy_json, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			policy_json = excluded.policy_json,
			updated_at = excluded.updated_at`,
		settings.Name, string(policyJSON), settings.UpdatedAt.Format(time.RFC3339))
	return err
}

// =============================================================================
// AUDIT LOG - Append-only
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e toil.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, submission_id, subject_id, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.Format(time.RFC3339), e.ActorID, string(e.Action),
		e.SubmissionID, e.SubjectID, e.Detail)
	return err
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]toil.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, actor_id, action,
			COALESCE(submission_id, ''), COALESCE(subject_id, ''), COALESCE(detail, '')
		FROM audit_log ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []toil.AuditEntry
	for rows.Next() {
		var e toil.AuditEntry
		var at, action string
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &action, &e.SubmissionID, &e.SubjectID, &e.Detail); err != nil {
			return nil, err
		}
		e.Action = toil.AuditAction(action)
		if e.At, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
