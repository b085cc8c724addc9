/*
status.go - Submission status state machine

PURPOSE:
  A submission is created Pending and decided exactly once. The only
  legal transitions are Pending -> Approved and Pending -> Rejected, both
  terminal. Attempts to decide an already-decided submission fail with a
  typed error and never silently no-op, so callers can distinguish
  "already decided" from "decision applied".

CONCURRENCY:
  Two managers can race to decide the same submission. The store applies
  the transition with compare-and-set semantics (transition succeeds only
  while the current status is still Pending); the loser of the race
  observes InvalidStateTransitionError and surfaces it as "this request
  was already decided". The engine's job here is only to define what a
  legal transition is.
*/
package engine

// CanTransition reports whether from -> to is a legal status transition.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusApproved || to == StatusRejected)
}

// ValidateTransition returns an InvalidStateTransitionError if from -> to
// is not legal for the given submission.
func ValidateTransition(submissionID string, from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &InvalidStateTransitionError{
		SubmissionID: submissionID,
		From:         from,
		To:           to,
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}
