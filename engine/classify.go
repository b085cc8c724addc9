/*
classify.go - Overtime policy

PURPOSE:
  Decides how many minutes of TOIL a normalized interval earns.

POLICY:
  Weekend work earns every rounded minute: by policy it is entirely
  additional to the contracted week, so there is no deduction.

  Weekday work earns only the minutes beyond the standard contracted day:
  max(0, duration - contractedMinutes). Working exactly the contracted day
  earns nothing.

  Earned TOIL is never negative.

SEE ALSO:
  - normalize.go: Produces the duration this file classifies
*/
package engine

// DefaultContractedMinutes is the standard contracted work day
// (8 hours), deducted from weekday intervals before any TOIL is earned.
const DefaultContractedMinutes = 480

// Classify applies the overtime policy to a normalized interval.
// Purely arithmetic; no failure modes.
func Classify(n NormalizedInterval, isWeekend bool, contractedMinutes int) AccrualResult {
	if contractedMinutes < 0 {
		contractedMinutes = 0
	}

	if isWeekend {
		return AccrualResult{EarnedMinutes: n.DurationMinutes}
	}

	earned := n.DurationMinutes - contractedMinutes
	if earned < 0 {
		earned = 0
	}
	return AccrualResult{EarnedMinutes: earned}
}
