// Package store provides an in-memory Store implementation
// (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/quill/toil-tracker/engine"
	"github.com/quill/toil-tracker/toil"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of toil.Store and toil.AuditLog
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	submissions map[string]engine.Submission
	users       map[string]toil.User
	departments map[string]toil.Department
	settings    *toil.OrgSettings
	audit       []toil.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		submissions: make(map[string]engine.Submission),
		users:       make(map[string]toil.User),
		departments: make(map[string]toil.Department),
	}
}

var _ toil.Store = (*Memory)(nil)
var _ toil.AuditLog = (*Memory)(nil)

// =============================================================================
// SUBMISSIONS
// =============================================================================

func (m *Memory) CreateSubmission(_ context.Context, s engine.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[s.ID] = s
	return nil
}

func (m *Memory) GetSubmission(_ context.Context, id string) (*engine.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &s, nil
}

func (m *Memory) ListSubmissionsByUser(_ context.Context, userID string) ([]engine.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Submission
	for _, s := range m.submissions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) ListSubmissionsByUsers(_ context.Context, userIDs []string) ([]engine.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var out []engine.Submission
	for _, s := range m.submissions {
		if want[s.UserID] {
			out = append(out, s)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) ListSubmissionsByStatus(_ context.Context, status engine.Status) ([]engine.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Submission
	for _, s := range m.submissions {
		if s.Status == status {
			out = append(out, s)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// UpdateSubmissionStatus applies the transition with compare-and-set
// semantics: it succeeds only while the record is still Pending.
func (m *Memory) UpdateSubmissionStatus(_ context.Context, id string, to engine.Status, managerNote string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.submissions[id]
	if !ok {
		return engine.ErrNotFound
	}
	if err := engine.ValidateTransition(id, s.Status, to); err != nil {
		return err
	}
	s.Status = to
	s.ManagerNote = managerNote
	m.submissions[id] = s
	return nil
}

func sortNewestFirst(subs []engine.Submission) {
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].Date.Equal(subs[j].Date) {
			return subs[i].Date.After(subs[j].Date)
		}
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) CreateUser(_ context.Context, u toil.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*toil.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*toil.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, engine.ErrNotFound
}

func (m *Memory) ListUsers(_ context.Context) ([]toil.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]toil.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListUsersByManager(_ context.Context, managerID string) ([]toil.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []toil.User
	for _, u := range m.users {
		if u.ManagerID != nil && *u.ManagerID == managerID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) UpdateUser(_ context.Context, u toil.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return engine.ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

// =============================================================================
// DEPARTMENTS & SETTINGS
// =============================================================================

func (m *Memory) CreateDepartment(_ context.Context, d toil.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments[d.ID] = d
	return nil
}

func (m *Memory) ListDepartments(_ context.Context) ([]toil.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]toil.Department, 0, len(m.departments))
	for _, d := range m.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteDepartment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.departments[id]; !ok {
		return engine.ErrNotFound
	}
	delete(m.departments, id)
	return nil
}

func (m *Memory) GetSettings(_ context.Context) (*toil.OrgSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, engine.ErrNotFound
	}
	s := *m.settings
	return &s, nil
}

func (m *Memory) SaveSettings(_ context.Context, s toil.OrgSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, e toil.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) ListAudit(_ context.Context, limit int) ([]toil.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]toil.AuditEntry, len(m.audit))
	copy(out, m.audit)
	sort.Slice(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
