/*
errors.go - Centralized error types for the engine

PURPOSE:
  All engine error types in one place. Callers match with errors.Is and
  unwrap the structured variants for detail. Nothing here is fatal:
  invalid input always yields a typed error or a defined zero value,
  never a crash, and the engine never swallows errors - callers decide
  retry versus user-facing messaging.

ERROR CATEGORIES:
  1. Validation errors  - malformed interval, non-positive amount
  2. Balance errors     - over-withdrawal, cap exceeded
  3. Lifecycle errors   - deciding an already-decided submission

USAGE:
  if errors.Is(err, engine.ErrInsufficientBalance) {
      // surface "insufficient balance" to the user, do not persist
  }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-input errors.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a use request would drive the
	// projected balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBalanceCapExceeded is returned when an earn submission would push
	// the projected balance over the organization's maximum.
	ErrBalanceCapExceeded = errors.New("balance cap exceeded")

	// ErrInvalidStateTransition is returned when deciding a submission that
	// is no longer Pending. Expected under concurrent approvals.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNotFound is returned when a referenced submission or user
	// doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the acting user lacks the capability
	// for the operation (e.g. deciding a submission outside their team).
	ErrForbidden = errors.New("forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError reports a malformed input field. Recovered locally: the form
// stays open and the user corrects the input.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// InsufficientBalanceError provides details about a blocked over-withdrawal.
type InsufficientBalanceError struct {
	UserID    string
	Available int
	Requested int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d min, requested %d min, shortfall %d min",
		e.Available, e.Requested, e.Requested-e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// BalanceCapError provides details about a blocked over-accrual.
type BalanceCapError struct {
	UserID     string
	CapMinutes int
	Projected  int
}

func (e *BalanceCapError) Error() string {
	return fmt.Sprintf("balance cap exceeded: projected %d min over cap of %d min",
		e.Projected, e.CapMinutes)
}

func (e *BalanceCapError) Unwrap() error { return ErrBalanceCapExceeded }

// InvalidStateTransitionError reports an attempt to decide an
// already-decided submission.
type InvalidStateTransitionError struct {
	SubmissionID string
	From         Status
	To           Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("submission %s: cannot transition %s -> %s",
		e.SubmissionID, e.From, e.To)
}

func (e *InvalidStateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or state, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrBalanceCapExceeded) ||
		errors.Is(err, ErrInvalidStateTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
