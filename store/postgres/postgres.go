/*
Package postgres provides a PostgreSQL-backed implementation of the
storage interfaces.

PURPOSE:
  Same contract as store/sqlite, backed by a pgx connection pool for
  hosted deployments. Selected at startup when DATABASE_URL is set.

COMPARE-AND-SET:
  Status decisions use the same conditional UPDATE as the SQLite store:
    UPDATE submissions SET status=$1 WHERE id=$2 AND status='Pending'
  Zero rows affected means a concurrent decision already landed.

SEE ALSO:
  - toil/store.go: Interface definitions
  - store/sqlite: Single-node implementation
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quill/toil-tracker/engine"
	"github.com/quill/toil-tracker/toil"
)

// Store implements toil.Store and toil.AuditLog on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ toil.Store = (*Store)(nil)
var _ toil.AuditLog = (*Store)(nil)

// New connects to the database and runs migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS departments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		manager_id TEXT REFERENCES users(id),
		department_id TEXT REFERENCES departments(id),
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_manager ON users(manager_id);
	CREATE INDEX IF NOT EXISTS idx_users_department ON users(department_id);

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		type TEXT NOT NULL CHECK (type IN ('earn', 'use')),
		date DATE NOT NULL,
		amount_minutes INTEGER NOT NULL CHECK (amount_minutes >= 0),
		status TEXT NOT NULL DEFAULT 'Pending'
			CHECK (status IN ('Pending', 'Approved', 'Rejected')),
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		manager_note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_user_status
		ON submissions(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_submissions_status
		ON submissions(status);
	CREATE INDEX IF NOT EXISTS idx_submissions_date
		ON submissions(date DESC);

	CREATE TABLE IF NOT EXISTS org_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		name TEXT NOT NULL,
		policy_json JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TIMESTAMPTZ NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		submission_id TEXT NOT NULL DEFAULT '',
		subject_id TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at DESC);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

const submissionCols = `id, user_id, type, date, amount_minutes, status,
	start_time, end_time, project, notes, manager_note, created_at`

func (s *Store) CreateSubmission(ctx context.Context, sub engine.Submission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (id, user_id, type, date, amount_minutes, status,
			start_time, end_time, project, notes, manager_note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sub.ID, sub.UserID, string(sub.Type), sub.Date, sub.AmountMinutes,
		string(sub.Status), sub.StartTime, sub.EndTime, sub.Project,
		sub.Notes, sub.ManagerNote, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*engine.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) ListSubmissionsByUser(ctx context.Context, userID string) ([]engine.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionCols+` FROM submissions
		 WHERE user_id = $1 ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

func (s *Store) ListSubmissionsByUsers(ctx context.Context, userIDs []string) ([]engine.Submission, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionCols+` FROM submissions
		 WHERE user_id = ANY($1) ORDER BY date DESC, created_at DESC`, userIDs)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

func (s *Store) ListSubmissionsByStatus(ctx context.Context, status engine.Status) ([]engine.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionCols+` FROM submissions
		 WHERE status = $1 ORDER BY date DESC, created_at DESC`, string(status))
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

func (s *Store) UpdateSubmissionStatus(ctx context.Context, id string, to engine.Status, managerNote string) error {
	if !engine.CanTransition(engine.StatusPending, to) {
		return engine.ValidateTransition(id, engine.StatusPending, to)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE submissions SET status = $1, manager_note = $2
		WHERE id = $3 AND status = 'Pending'`,
		string(to), managerNote, id)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

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

func scanSubmission(row pgx.Row) (*engine.Submission, error) {
	var sub engine.Submission
	var typ, status string
	err := row.Scan(&sub.ID, &sub.UserID, &typ, &sub.Date, &sub.AmountMinutes,
		&status, &sub.StartTime, &sub.EndTime, &sub.Project, &sub.Notes,
		&sub.ManagerNote, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	sub.Type = engine.SubmissionType(typ)
	sub.Status = engine.Status(status)
	return &sub, nil
}

func collectSubmissions(rows pgx.Rows) ([]engine.Submission, error) {
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, role, password_hash, manager_id, department_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Name, u.Email, string(u.Role), u.PasswordHash,
		u.ManagerID, u.DepartmentID, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*toil.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*toil.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]toil.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *Store) ListUsersByManager(ctx context.Context, managerID string) ([]toil.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userCols+` FROM users WHERE manager_id = $1 ORDER BY name`, managerID)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *Store) UpdateUser(ctx context.Context, u toil.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET name = $1, email = $2, role = $3, password_hash = $4,
			manager_id = $5, department_id = $6
		WHERE id = $7`,
		u.Name, u.Email, string(u.Role), u.PasswordHash, u.ManagerID, u.DepartmentID, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*toil.User, error) {
	var u toil.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.PasswordHash,
		&u.ManagerID, &u.DepartmentID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = toil.Role(role)
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]toil.User, error) {
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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO departments (id, name, created_at) VALUES ($1, $2, $3)`,
		d.ID, d.Name, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]toil.Department, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []toil.Department
	for rows.Next() {
		var d toil.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// =============================================================================
// ORG SETTINGS
// =============================================================================

func (s *Store) GetSettings(ctx context.Context) (*toil.OrgSettings, error) {
	var settings toil.OrgSettings
	var policyJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT name, policy_json, updated_at FROM org_settings WHERE id = 1`).
		Scan(&settings.Name, &policyJSON, &settings.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(policyJSON, &settings.Policy); err != nil {
		return nil, fmt.Errorf("parse policy json: %w", err)
	}
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings toil.OrgSettings) error {
	policyJSON, err := json.Marshal(settings.Policy)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO org_settings (id, name, policy_json, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			policy_json = EXCLUDED.policy_json,
			updated_at = EXCLUDED.updated_at`,
		settings.Name, policyJSON, settings.UpdatedAt)
	return err
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e toil.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, submission_id, subject_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.At, e.ActorID, string(e.Action), e.SubmissionID, e.SubjectID, e.Detail)
	return err
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]toil.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, at, actor_id, action, submission_id, subject_id, detail
		FROM audit_log ORDER BY at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []toil.AuditEntry
	for rows.Next() {
		var e toil.AuditEntry
		var action string
		if err := rows.Scan(&e.ID, &e.At, &e.ActorID, &action,
			&e.SubmissionID, &e.SubjectID, &e.Detail); err != nil {
			return nil, err
		}
		e.Action = toil.AuditAction(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
