package sqlite

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quill/toil-tracker/engine"
	"github.com/quill/toil-tracker/toil"
)

// Seed loads a small development dataset: one admin, one manager with
// two reports, a couple of departments, default settings, and a handful
// of submissions in every status. Idempotent; skips if users exist.
func (s *Store) Seed(ctx context.Context) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	now := time.Now()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	departments := []toil.Department{
		{ID: "dep-eng", Name: "Engineering", CreatedAt: now},
		{ID: "dep-ops", Name: "Operations", CreatedAt: now},
	}
	for _, d := range departments {
		if err := s.CreateDepartment(ctx, d); err != nil {
			return err
		}
	}

	engDep := "dep-eng"
	opsDep := "dep-ops"
	managerID := "usr-morgan"

	seedUsers := []toil.User{
		{ID: "usr-alex", Name: "Alex Reid", Email: "alex@example.com",
			Role: toil.RoleAdmin, PasswordHash: string(hash), CreatedAt: now},
		{ID: managerID, Name: "Morgan Hale", Email: "morgan@example.com",
			Role: toil.RoleManager, PasswordHash: string(hash), DepartmentID: &engDep, CreatedAt: now},
		{ID: "usr-jamie", Name: "Jamie Park", Email: "jamie@example.com",
			Role: toil.RoleEmployee, PasswordHash: string(hash), ManagerID: &managerID, DepartmentID: &engDep, CreatedAt: now},
		{ID: "usr-sam", Name: "Sam Okafor", Email: "sam@example.com",
			Role: toil.RoleEmployee, PasswordHash: string(hash), ManagerID: &managerID, DepartmentID: &opsDep, CreatedAt: now},
	}
	for _, u := range seedUsers {
		if err := s.CreateUser(ctx, u); err != nil {
			return err
		}
	}

	if err := s.SaveSettings(ctx, toil.OrgSettings{
		Name:      "Acme Ltd",
		Policy:    toil.DefaultPolicy(),
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	day := func(offset int) time.Time {
		return now.AddDate(0, 0, -offset).Truncate(24 * time.Hour)
	}

	// Jamie: an approved weekend earn, an approved use, and a pending
	// weekday earn. Sam: a rejected earn, an approved earn and a
	// pending use.
	submissions := []engine.Submission{
		{ID: "sub-seed-1", UserID: "usr-jamie", Type: engine.SubmissionEarn,
			Date: day(20), AmountMinutes: 300, Status: engine.StatusApproved,
			StartTime: "09:00", EndTime: "14:00", Project: "Release hardening",
			CreatedAt: now.AddDate(0, 0, -20)},
		{ID: "sub-seed-2", UserID: "usr-jamie", Type: engine.SubmissionUse,
			Date: day(10), AmountMinutes: 120, Status: engine.StatusApproved,
			Notes: "Dentist", ManagerNote: "Enjoy", CreatedAt: now.AddDate(0, 0, -12)},
		{ID: "sub-seed-3", UserID: "usr-jamie", Type: engine.SubmissionEarn,
			Date: day(2), AmountMinutes: 90, Status: engine.StatusPending,
			StartTime: "08:30", EndTime: "18:30", Project: "Incident response",
			CreatedAt: now.AddDate(0, 0, -2)},
		{ID: "sub-seed-4", UserID: "usr-sam", Type: engine.SubmissionEarn,
			Date: day(15), AmountMinutes: 240, Status: engine.StatusRejected,
			StartTime: "10:00", EndTime: "14:00", ManagerNote: "Not pre-agreed",
			CreatedAt: now.AddDate(0, 0, -15)},
		{ID: "sub-seed-5", UserID: "usr-sam", Type: engine.SubmissionEarn,
			Date: day(8), AmountMinutes: 180, Status: engine.StatusApproved,
			StartTime: "09:00", EndTime: "12:00", Project: "On-call cover",
			CreatedAt: now.AddDate(0, 0, -8)},
		{ID: "sub-seed-6", UserID: "usr-sam", Type: engine.SubmissionUse,
			Date: day(-5), AmountMinutes: 60, Status: engine.StatusPending,
			Notes: "Long lunch", CreatedAt: now.AddDate(0, 0, -1)},
	}
	for _, sub := range submissions {
		if err := s.CreateSubmission(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}
