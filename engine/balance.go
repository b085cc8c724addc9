/*
balance.go - Balance aggregation and projection

PURPOSE:
  Folds a submission history into a single signed balance, and projects
  that balance forward under a hypothetical new submission. This is the
  single source of truth for the balance formula: every view, report, and
  guard in the system goes through these functions. Stores never carry a
  second definition of the formula.

THE FORMULA:
  balance = sum(amount, Approved earn) - sum(amount, Approved use)

  Pending and Rejected submissions never contribute. An empty or
  all-non-approved history is a balance of zero - that is the defined
  baseline, not an error.

ORDER INDEPENDENCE:
  Summation is commutative, so the fold may run in any order. Reordering
  the input list never changes the result, and repeated calls on the same
  immutable list are idempotent.

PROJECTION:
  ProjectBalance answers "what would the balance be if this submission
  were approved?" It is the pre-submission guard for use requests: a
  projection below zero means the request must be rejected before it is
  ever persisted.

EXPIRY:
  ComputeBalanceAsOf is the optional aged-out variant: earn minutes older
  than the expiry window stop counting. With expiryDays = 0 it is exactly
  ComputeBalance.

SEE ALSO:
  - status.go: The lifecycle that feeds the Approved filter
*/
package engine

import "time"

// =============================================================================
// CONTRACT A - Balance from history
// =============================================================================

// ComputeBalance returns the TOIL balance in minutes for one user.
// Only Approved submissions belonging to userID contribute.
func ComputeBalance(subs []Submission, userID string) int {
	balance := 0
	for _, s := range subs {
		if s.UserID != userID || s.Status != StatusApproved {
			continue
		}
		switch s.Type {
		case SubmissionEarn:
			balance += s.AmountMinutes
		case SubmissionUse:
			balance -= s.AmountMinutes
		}
	}
	return balance
}

// =============================================================================
// CONTRACT B - Projection under a candidate submission
// =============================================================================

// ProjectBalance returns the balance as it would stand if a submission of
// the given type and amount were approved. Pure arithmetic; the caller
// owns the decision of what a negative projection means.
func ProjectBalance(currentBalance int, t SubmissionType, amountMinutes int) int {
	if t == SubmissionEarn {
		return currentBalance + amountMinutes
	}
	return currentBalance - amountMinutes
}

// =============================================================================
// CONTRACT C - Per-user aggregation for manager views
// =============================================================================

// AggregateForTeam computes one balance per team member. Every id in
// teamUserIDs gets an entry; members with no submissions map to 0, so
// callers never special-case missing keys.
func AggregateForTeam(subs []Submission, teamUserIDs []string) map[string]int {
	balances := make(map[string]int, len(teamUserIDs))
	for _, id := range teamUserIDs {
		balances[id] = 0
	}
	for _, s := range subs {
		if _, ok := balances[s.UserID]; !ok || s.Status != StatusApproved {
			continue
		}
		switch s.Type {
		case SubmissionEarn:
			balances[s.UserID] += s.AmountMinutes
		case SubmissionUse:
			balances[s.UserID] -= s.AmountMinutes
		}
	}
	return balances
}

// =============================================================================
// EXPIRY VARIANT - Balance with aged-out earn
// =============================================================================

// ComputeBalanceAsOf returns the balance at asOf with earn expiry applied:
// an Approved earn submission dated more than expiryDays before asOf no
// longer counts. Use submissions never expire. expiryDays <= 0 disables
// expiry and reproduces ComputeBalance exactly.
func ComputeBalanceAsOf(subs []Submission, userID string, asOf time.Time, expiryDays int) int {
	if expiryDays <= 0 {
		return ComputeBalance(subs, userID)
	}

	cutoff := asOf.AddDate(0, 0, -expiryDays)
	balance := 0
	for _, s := range subs {
		if s.UserID != userID || s.Status != StatusApproved {
			continue
		}
		switch s.Type {
		case SubmissionEarn:
			if s.Date.Before(cutoff) {
				continue
			}
			balance += s.AmountMinutes
		case SubmissionUse:
			balance -= s.AmountMinutes
		}
	}
	return balance
}
