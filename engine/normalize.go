/*
normalize.go - Interval rounding

PURPOSE:
  Converts a raw clock-in/clock-out pair into a billable duration using the
  outward rounding policy: start snaps DOWN to the grid, end snaps UP.
  Both roundings favor the employee.

EXAMPLE:
  09:05-19:02 on a 15-minute grid becomes 09:00-19:15, 610 minutes.

ZERO-DURATION INTERVALS:
  If the rounded end does not land strictly after the rounded start the
  duration is zero. That is not an error; it is simply an interval that
  earns nothing. Callers decide whether a zero-earning submission is worth
  persisting (the logging form rejects it).

SEE ALSO:
  - classify.go: Applies the overtime policy to the normalized duration
*/
package engine

// DefaultGridMinutes is the snapping interval applied to logged
// start/end times.
const DefaultGridMinutes = 15

// Normalize snaps the interval to the rounding grid and computes its
// duration. Pure function; deterministic for the same inputs and grid.
func Normalize(iv WorkInterval, gridMinutes int) NormalizedInterval {
	if gridMinutes <= 0 {
		gridMinutes = DefaultGridMinutes
	}

	start := iv.Start.Minutes() / gridMinutes * gridMinutes
	end := (iv.End.Minutes() + gridMinutes - 1) / gridMinutes * gridMinutes

	duration := end - start
	if duration < 0 {
		duration = 0
	}

	return NormalizedInterval{
		RoundedStart:    ClockTime(start),
		RoundedEnd:      ClockTime(end),
		DurationMinutes: duration,
	}
}
