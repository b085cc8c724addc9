package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// CLOCK TIME - Wall-clock time of day, minute precision
// =============================================================================

// ClockTime is a wall-clock time within a day, held as minutes since
// midnight. Rounding an end time up can legitimately produce 24:00 (1440
// minutes), which is why this is not a time.Time.
type ClockTime int

// ParseClock parses "HH:MM" (the wire format of the logging form).
func ParseClock(s string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, &FieldError{Field: "time", Message: fmt.Sprintf("invalid time %q, expected HH:MM", s)}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, &FieldError{Field: "time", Message: fmt.Sprintf("time %q out of range", s)}
	}
	return ClockTime(h*60 + m), nil
}

// MustClock is a test/fixture helper; it panics on malformed input.
func MustClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Minutes() int { return int(c) }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// IsWeekendDate reports whether the date falls on Saturday or Sunday.
// This is a display hint for forms; the engine itself trusts the
// user-declared IsWeekend flag on the interval.
func IsWeekendDate(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
