package query

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildEntityWatch(t *testing.T) {
	got, err := Build("entity", "Acme Corp", nil, date(2026, 1, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `"Acme Corp" fromdate:01-01-2026`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildActWatch(t *testing.T) {
	got, err := Build("act", "Arbitration and Conciliation Act", nil, date(2026, 3, 15), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `"Arbitration and Conciliation Act" fromdate:15-03-2026`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildTopicCommaSeparated(t *testing.T) {
	got, err := Build("topic", "environmental clearance, mining", nil, date(2026, 6, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `"environmental clearance" ANDD mining fromdate:01-06-2026`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildTopicTwoWords(t *testing.T) {
	got, err := Build("topic", "anticipatory bail", nil, date(2026, 6, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `"anticipatory bail" fromdate:01-06-2026`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildTopicSingleWord(t *testing.T) {
	got, err := Build("topic", "demonetisation", nil, date(2026, 6, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `demonetisation fromdate:01-06-2026`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildTopicManyWordsSplit(t *testing.T) {
	got, err := Build("topic", "data protection privacy", nil, date(2026, 6, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `data ANDD protection ANDD privacy fromdate:01-06-2026`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildCourtFilter(t *testing.T) {
	got, err := Build("entity", "Acme Corp", []string{"supremecourt", "delhi"}, date(2026, 1, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `"Acme Corp" doctypes:supremecourt,delhi fromdate:01-01-2026`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildWithToDate(t *testing.T) {
	to := date(2026, 2, 1)
	got, err := Build("entity", "Acme Corp", nil, date(2026, 1, 1), &to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `"Acme Corp" fromdate:01-01-2026 todate:01-02-2026`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildUnknownType(t *testing.T) {
	if _, err := Build("judge", "Smith", nil, date(2026, 1, 1), nil); err == nil {
		t.Error("expected error for unknown watch type")
	}
}

func TestBuildTrimsWhitespace(t *testing.T) {
	got, err := Build("entity", "  Acme Corp  ", nil, date(2026, 1, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `"Acme Corp" fromdate:01-01-2026`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
