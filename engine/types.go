/*
Package engine implements the TOIL balance and accrual rules.

PURPOSE:
  This package contains the pure computation at the heart of the tracker:
  converting logged work intervals into billable durations, applying the
  overtime policy to decide how many minutes of TOIL are earned, and folding
  submission history into an authoritative balance.

KEY CONCEPTS IN THIS FILE (types.go):
  - WorkInterval: A raw clock-in/clock-out pair as entered by the employee
  - NormalizedInterval: The interval after outward 15-minute rounding
  - AccrualResult: Minutes of TOIL earned from one interval
  - Submission: An earn or use record with its approval lifecycle status

DESIGN PRINCIPLES:
  1. Purity: Every function is a deterministic function of its inputs.
     No I/O, no clocks, no shared state. Callers hand in submission lists
     and get values back.
  2. Derived balance: Balance is always recomputed from the submission set.
     It is a view, never stored as independent mutable state, so it cannot
     drift from the underlying history.
  3. Rounding in the employee's favor: start times round down, end times
     round up. The organization absorbs the rounding, never the employee.

USAGE:
  norm := engine.Normalize(interval, engine.DefaultGridMinutes)
  acc := engine.Classify(norm, interval.IsWeekend, engine.DefaultContractedMinutes)
  balance := engine.ComputeBalance(submissions, userID)

SEE ALSO:
  - normalize.go: Interval rounding
  - classify.go:  Overtime policy
  - balance.go:   Balance aggregation and projection
  - status.go:    Submission status state machine
*/
package engine

import "time"

// =============================================================================
// WORK INTERVAL - Raw input from the hours-logging form
// =============================================================================

// WorkInterval is a raw clock-in/clock-out pair for a single calendar day.
//
// IsWeekend is declared by the user, not derived from Date. Some
// organizations treat public holidays or on-call days as "weekend" work,
// so the flag is policy input rather than calendar output.
//
// Intervals crossing midnight are not supported: Start and End are assumed
// to fall on the same calendar day. A 23:30-00:30 shift must be logged as
// two intervals.
type WorkInterval struct {
	Date      time.Time
	Start     ClockTime
	End       ClockTime
	IsWeekend bool
}

// NormalizedInterval is a WorkInterval after snapping to the rounding grid.
// RoundedStart is rounded down, RoundedEnd is rounded up, and
// DurationMinutes is their difference floored at zero.
type NormalizedInterval struct {
	RoundedStart    ClockTime
	RoundedEnd      ClockTime
	DurationMinutes int
}

// AccrualResult is the outcome of applying the overtime policy to a
// normalized interval.
type AccrualResult struct {
	EarnedMinutes int
}

// =============================================================================
// SUBMISSION - An earn or use record with its lifecycle status
// =============================================================================

type SubmissionType string

const (
	// SubmissionEarn records extra hours worked, converted to TOIL on approval.
	SubmissionEarn SubmissionType = "earn"

	// SubmissionUse records a request to draw down TOIL balance for time off.
	SubmissionUse SubmissionType = "use"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Submission is one earn or use record.
//
// AmountMinutes is stored non-negative for both types; the sign is implied
// by Type. Only Approved submissions contribute to balance.
//
// A submission is owned by its UserID. It is created as Pending and
// transitioned exactly once, by a manager or admin, to Approved or
// Rejected. It is immutable thereafter.
type Submission struct {
	ID            string
	UserID        string
	Type          SubmissionType
	Date          time.Time
	AmountMinutes int
	Status        Status

	// Earn submissions keep the raw times for the approval review screen.
	StartTime string
	EndTime   string

	Project     string
	Notes       string
	ManagerNote string

	CreatedAt time.Time
}
