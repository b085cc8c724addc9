package engine

import "fmt"

// FormatMinutes renders minutes as "H:MM" for display. Negative input is
// clamped to "0:00"; the formatter is defensive even though a balance
// computed from Approved history should never be handed to it negative.
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}
