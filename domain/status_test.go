package domain

import "testing"

func TestMapStatusTable(t *testing.T) {
	cases := map[string]string{
		"todo":        "pending",
		"in_progress": "in-progress",
		"completed":   "completed",
		"pending":     "pending",
		"in-progress": "in-progress",
		"archived":    "archived",
		"":            "",
	}
	for in, want := range cases {
		if got := MapStatus(in); got != want {
			t.Fatalf("MapStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapStatusCanonicalFixedPoints(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusCompleted} {
		if got := MapStatus(string(s)); got != string(s) {
			t.Fatalf("canonical %q remapped to %q", s, got)
		}
	}
}

func TestMapStatusIdempotent(t *testing.T) {
	inputs := []string{"todo", "in_progress", "completed", "pending", "in-progress", "weird", "TODO", " todo"}
	for _, in := range inputs {
		once := MapStatus(in)
		if twice := MapStatus(once); twice != once {
			t.Fatalf("MapStatus not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestColumnToStatus(t *testing.T) {
	for _, c := range Columns {
		s, ok := ColumnToStatus(c)
		if !ok {
			t.Fatalf("expected column %q to map to a canonical status", c)
		}
		back, ok := ColumnForStatus(s)
		if !ok || back != c {
			t.Fatalf("expected %q to round trip, got %q", c, back)
		}
	}
	if s, ok := ColumnToStatus("backlog"); ok || s != "backlog" {
		t.Fatalf("expected pass-through without recognition, got %q %v", s, ok)
	}
}

func TestIsColumn(t *testing.T) {
	if !IsColumn("in_progress") || IsColumn("in-progress") || IsColumn("t1") {
		t.Fatalf("unexpected column recognition")
	}
}
