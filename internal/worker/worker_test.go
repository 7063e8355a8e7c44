package worker

import (
	"testing"
	"time"
)

func TestNextDigestTimeLaterToday(t *testing.T) {
	now := time.Date(2026, 8, 28, 7, 30, 0, 0, time.UTC)
	next := nextDigestTime(now, 9)
	want := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestNextDigestTimeTomorrow(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	next := nextDigestTime(now, 9)
	want := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}

	now = time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)
	next = nextDigestTime(now, 9)
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestIntervalFallbacks(t *testing.T) {
	if got := minutes(0, 30); got != 30*time.Minute {
		t.Errorf("expected fallback 30m, got %v", got)
	}
	if got := minutes(15, 30); got != 15*time.Minute {
		t.Errorf("expected 15m, got %v", got)
	}
	if got := seconds(0, 30); got != 30*time.Second {
		t.Errorf("expected fallback 30s, got %v", got)
	}
}
