package engine_test

import (
	"testing"
	"time"

	"github.com/quill/toil-tracker/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func interval(start, end string, weekend bool) engine.WorkInterval {
	return engine.WorkInterval{
		Date:      time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Start:     engine.MustClock(start),
		End:       engine.MustClock(end),
		IsWeekend: weekend,
	}
}

// =============================================================================
// NORMALIZER TESTS
// =============================================================================

func TestNormalize_OutwardRounding(t *testing.T) {
	// GIVEN: 09:05-19:02 on the default 15-minute grid
	// WHEN: Normalizing
	// THEN: Start rounds down to 09:00, end rounds up to 19:15, 610 minutes

	n := engine.Normalize(interval("09:05", "19:02", false), engine.DefaultGridMinutes)

	if got := n.RoundedStart.String(); got != "09:00" {
		t.Errorf("expected rounded start 09:00, got %s", got)
	}
	if got := n.RoundedEnd.String(); got != "19:15" {
		t.Errorf("expected rounded end 19:15, got %s", got)
	}
	if n.DurationMinutes != 610 {
		t.Errorf("expected 610 minutes, got %d", n.DurationMinutes)
	}
}

func TestNormalize_AlreadyOnGrid(t *testing.T) {
	// GIVEN: 09:00-17:00, both already on the grid
	// WHEN: Normalizing
	// THEN: Times are unchanged, 480 minutes

	n := engine.Normalize(interval("09:00", "17:00", false), 15)

	if n.RoundedStart.String() != "09:00" || n.RoundedEnd.String() != "17:00" {
		t.Errorf("on-grid times should be unchanged, got %s-%s", n.RoundedStart, n.RoundedEnd)
	}
	if n.DurationMinutes != 480 {
		t.Errorf("expected 480 minutes, got %d", n.DurationMinutes)
	}
}

func TestNormalize_InvertedInterval_ZeroDuration(t *testing.T) {
	// GIVEN: End before start
	// WHEN: Normalizing
	// THEN: Duration floors at zero; not an error

	n := engine.Normalize(interval("17:00", "09:00", false), 15)
	if n.DurationMinutes != 0 {
		t.Errorf("expected 0 minutes for inverted interval, got %d", n.DurationMinutes)
	}
}

func TestNormalize_DurationNeverNegative(t *testing.T) {
	// Rounding monotonicity: duration >= 0 for any interval.
	cases := [][2]string{
		{"09:00", "09:00"},
		{"09:14", "09:01"},
		{"23:50", "23:59"},
		{"00:00", "00:01"},
		{"12:07", "12:08"},
	}
	for _, c := range cases {
		n := engine.Normalize(interval(c[0], c[1], false), 15)
		if n.DurationMinutes < 0 {
			t.Errorf("%s-%s: negative duration %d", c[0], c[1], n.DurationMinutes)
		}
	}
}

func TestNormalize_EndRoundsUpToMidnight(t *testing.T) {
	// GIVEN: An interval ending 23:50
	// WHEN: Normalizing
	// THEN: End rounds up to 24:00 without wrapping

	n := engine.Normalize(interval("22:00", "23:50", true), 15)
	if n.RoundedEnd.Minutes() != 1440 {
		t.Errorf("expected end at 1440 minutes, got %d", n.RoundedEnd.Minutes())
	}
	if n.DurationMinutes != 120 {
		t.Errorf("expected 120 minutes, got %d", n.DurationMinutes)
	}
}

func TestNormalize_ZeroGridFallsBackToDefault(t *testing.T) {
	n := engine.Normalize(interval("09:05", "09:20", false), 0)
	if n.RoundedStart.String() != "09:00" || n.RoundedEnd.String() != "09:30" {
		t.Errorf("expected default grid rounding, got %s-%s", n.RoundedStart, n.RoundedEnd)
	}
}

// =============================================================================
// CLASSIFIER TESTS
// =============================================================================

func TestClassify_WeekendEarnsInFull(t *testing.T) {
	// GIVEN: 09:00-17:00 on a weekend
	// WHEN: Classifying
	// THEN: All 480 minutes earned, no contracted deduction

	n := engine.Normalize(interval("09:00", "17:00", true), 15)
	acc := engine.Classify(n, true, engine.DefaultContractedMinutes)

	if acc.EarnedMinutes != 480 {
		t.Errorf("expected 480 earned minutes on weekend, got %d", acc.EarnedMinutes)
	}
}

func TestClassify_WeekdayAtThresholdEarnsNothing(t *testing.T) {
	// GIVEN: Exactly the 8h contracted day on a weekday
	// WHEN: Classifying
	// THEN: Nothing extra earned

	n := engine.Normalize(interval("09:00", "17:00", false), 15)
	acc := engine.Classify(n, false, engine.DefaultContractedMinutes)

	if acc.EarnedMinutes != 0 {
		t.Errorf("expected 0 earned minutes at the contracted threshold, got %d", acc.EarnedMinutes)
	}
}

func TestClassify_WeekdayOvertime(t *testing.T) {
	// GIVEN: 09:05-19:02 weekday -> 610 rounded minutes
	// WHEN: Classifying with the 480-minute contracted day
	// THEN: 130 minutes earned

	n := engine.Normalize(interval("09:05", "19:02", false), 15)
	acc := engine.Classify(n, false, engine.DefaultContractedMinutes)

	if acc.EarnedMinutes != 130 {
		t.Errorf("expected 130 earned minutes, got %d", acc.EarnedMinutes)
	}
}

func TestClassify_NeverNegative(t *testing.T) {
	// GIVEN: A short weekday interval well under the contracted day
	// THEN: Earned floors at zero, never negative

	n := engine.Normalize(interval("09:00", "10:00", false), 15)
	acc := engine.Classify(n, false, engine.DefaultContractedMinutes)

	if acc.EarnedMinutes != 0 {
		t.Errorf("expected 0 earned minutes, got %d", acc.EarnedMinutes)
	}
}

// =============================================================================
// CLOCK PARSING TESTS
// =============================================================================

func TestParseClock(t *testing.T) {
	c, err := engine.ParseClock("09:05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Minutes() != 545 {
		t.Errorf("expected 545 minutes, got %d", c.Minutes())
	}

	for _, bad := range []string{"", "9", "25:00", "12:60", "ab:cd"} {
		if _, err := engine.ParseClock(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestIsWeekendDate(t *testing.T) {
	// A form hint only: the engine trusts the declared IsWeekend flag,
	// so a Monday interval can still be classified as weekend work.
	saturday := time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC)
	monday := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	if !engine.IsWeekendDate(saturday) {
		t.Error("Saturday should be a weekend date")
	}
	if engine.IsWeekendDate(monday) {
		t.Error("Monday should not be a weekend date")
	}

	acc := engine.Classify(engine.Normalize(interval("09:00", "12:00", true), 15), true, 480)
	if acc.EarnedMinutes != 180 {
		t.Errorf("declared weekend work on a Monday should earn 180, got %d", acc.EarnedMinutes)
	}
}
