package order

import (
	"fmt"
	"time"
)

// FormatMoney renders cents as dollars, e.g. 1234 -> "$12.34".
func FormatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// ElapsedMinutes returns whole minutes elapsed since t.
func ElapsedMinutes(t, now time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}

	return int(d / time.Minute)
}

// FormatElapsed renders the waiting time of a ticket.
func FormatElapsed(t, now time.Time) string {
	mins := ElapsedMinutes(t, now)
	switch {
	case mins < 1:
		return "just now"
	case mins < 60:
		return fmt.Sprintf("%dm", mins)
	default:
		return fmt.Sprintf("%dh %dm", mins/60, mins%60)
	}
}
