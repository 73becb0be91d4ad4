package popup

import (
	"fmt"
	"time"
)

// RelativeTime renders how long before now t was, coarsely.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

// Counter renders the "(n/capacity items)" header.
func Counter(n, capacity int) string {
	return fmt.Sprintf("(%d/%d items)", n, capacity)
}
