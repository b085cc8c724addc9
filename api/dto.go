/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the service layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - toil/service.go: Domain types these map from
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quill/toil-tracker/engine"
	"github.com/quill/toil-tracker/report"
	"github.com/quill/toil-tracker/toil"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LoginRequest is the credential payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the signed token and the authenticated user.
type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// UserDTO represents a user in API responses. Never carries the hash.
type UserDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	ManagerID    *string `json:"manager_id,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
}

// LogHoursRequest is the extra-hours logging payload. IsWeekend comes
// from the form's checkbox, not from the date: a weekday public holiday
// or on-call day is logged as weekend work by ticking it.
type LogHoursRequest struct {
	Date      string `json:"date"` // YYYY-MM-DD
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsWeekend bool   `json:"is_weekend"`
	Project   string `json:"project,omitempty"`
	Notes     string `json:"notes,omitempty"`
	// Preview computes without persisting.
	Preview bool `json:"preview,omitempty"`
}

// UseRequest is the time-off request payload.
type UseRequest struct {
	Date          string `json:"date"`
	AmountMinutes int    `json:"amount_minutes"`
	Notes         string `json:"notes,omitempty"`
}

// DecideRequest carries the optional manager note on approve/reject.
type DecideRequest struct {
	Note string `json:"note,omitempty"`
}

// SubmissionDTO represents a submission in API responses.
type SubmissionDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Type          string `json:"type"`
	Date          string `json:"date"`
	AmountMinutes int    `json:"amount_minutes"`
	Amount        string `json:"amount"` // "H:MM"
	Status        string `json:"status"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	Project       string `json:"project,omitempty"`
	Notes         string `json:"notes,omitempty"`
	ManagerNote   string `json:"manager_note,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// PreviewDTO is the earn preview shown before submitting.
type PreviewDTO struct {
	RoundedStart  string `json:"rounded_start"`
	RoundedEnd    string `json:"rounded_end"`
	DurationMin   int    `json:"duration_minutes"`
	EarnedMinutes int    `json:"earned_minutes"`
	Earned        string `json:"earned"`
}

// BalanceDTO is a user's current balance.
type BalanceDTO struct {
	UserID         string          `json:"user_id"`
	BalanceMinutes int             `json:"balance_minutes"`
	Balance        string          `json:"balance"` // "H:MM"
	BalanceHours   decimal.Decimal `json:"balance_hours"`
}

// TeamBalanceDTO is one row of the team overview.
type TeamBalanceDTO struct {
	User           UserDTO         `json:"user"`
	BalanceMinutes int             `json:"balance_minutes"`
	Balance        string          `json:"balance"`
	BalanceHours   decimal.Decimal `json:"balance_hours"`
}

// CreateUserRequest is the admin user-creation payload.
type CreateUserRequest struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Role         string  `json:"role"`
	ManagerID    *string `json:"manager_id,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
}

// UpdateUserRequest is the admin user-update payload. Empty fields keep
// their current value; manager and department clear when set to "".
type UpdateUserRequest struct {
	Name         string  `json:"name,omitempty"`
	Role         string  `json:"role,omitempty"`
	ManagerID    *string `json:"manager_id,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
}

// CreateDepartmentRequest is the admin department-creation payload.
type CreateDepartmentRequest struct {
	Name string `json:"name"`
}

// DepartmentDTO represents a department.
type DepartmentDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SettingsDTO represents organization settings.
type SettingsDTO struct {
	Name   string      `json:"name"`
	Policy toil.Policy `json:"policy"`
}

// AuditEntryDTO represents one audit-log record.
type AuditEntryDTO struct {
	ID           string `json:"id"`
	At           string `json:"at"`
	ActorID      string `json:"actor_id"`
	Action       string `json:"action"`
	SubmissionID string `json:"submission_id,omitempty"`
	SubjectID    string `json:"subject_id,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

// MonthlyReportDTO is the dashboard chart payload.
type MonthlyReportDTO struct {
	Series []report.MonthlyPoint `json:"series"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toUserDTO(u toil.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		ManagerID:    u.ManagerID,
		DepartmentID: u.DepartmentID,
	}
}

func toSubmissionDTO(s engine.Submission) SubmissionDTO {
	return SubmissionDTO{
		ID:            s.ID,
		UserID:        s.UserID,
		Type:          string(s.Type),
		Date:          s.Date.Format("2006-01-02"),
		AmountMinutes: s.AmountMinutes,
		Amount:        engine.FormatMinutes(s.AmountMinutes),
		Status:        string(s.Status),
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Project:       s.Project,
		Notes:         s.Notes,
		ManagerNote:   s.ManagerNote,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
}

func toSubmissionDTOs(subs []engine.Submission) []SubmissionDTO {
	out := make([]SubmissionDTO, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubmissionDTO(s))
	}
	return out
}

func toBalanceDTO(userID string, minutes int) BalanceDTO {
	return BalanceDTO{
		UserID:         userID,
		BalanceMinutes: minutes,
		Balance:        engine.FormatMinutes(minutes),
		BalanceHours:   report.Hours(minutes),
	}
}
