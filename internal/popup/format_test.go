package popup

import (
	"testing"
	"time"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "Just now"},
		{59 * time.Second, "Just now"},
		{time.Minute, "1m ago"},
		{59*time.Minute + 59*time.Second, "59m ago"},
		{time.Hour, "1h ago"},
		{23 * time.Hour, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{10*24*time.Hour + 5*time.Hour, "10d ago"},
		// Clock skew puts the entry in the future.
		{-time.Hour, "Just now"},
	}
	for _, tt := range tests {
		if got := RelativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("RelativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestCounter(t *testing.T) {
	if got := Counter(3, 50); got != "(3/50 items)" {
		t.Errorf("Counter = %q", got)
	}
	if got := Counter(0, 50); got != "(0/50 items)" {
		t.Errorf("Counter = %q", got)
	}
}
