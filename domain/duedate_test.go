package domain

import (
	"testing"
	"time"
)

var berlin = time.FixedZone("CET", 3600)

func TestDueLabel(t *testing.T) {
	now := time.Date(2026, time.March, 10, 14, 30, 0, 0, berlin)

	cases := []struct {
		name string
		due  time.Time
		want string
	}{
		{"same day morning", time.Date(2026, time.March, 10, 0, 1, 0, 0, berlin), "Heute"},
		{"same day late", time.Date(2026, time.March, 10, 23, 59, 0, 0, berlin), "Heute"},
		{"next day", time.Date(2026, time.March, 11, 8, 0, 0, 0, berlin), "Morgen"},
		{"later this year", time.Date(2026, time.June, 2, 0, 0, 0, 0, berlin), "2. Juni"},
		{"earlier this year", time.Date(2026, time.January, 5, 0, 0, 0, 0, berlin), "5. Jan."},
		{"next year", time.Date(2027, time.January, 2, 0, 0, 0, 0, berlin), "2. Jan. 2027"},
		{"last year", time.Date(2025, time.December, 24, 0, 0, 0, 0, berlin), "24. Dez. 2025"},
	}
	for _, tc := range cases {
		if got := DueLabel(tc.due, now); got != tc.want {
			t.Errorf("%s: DueLabel = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestIsOverdueStrictDayBoundary(t *testing.T) {
	// Late in the day, a task due earlier the same day is still not overdue.
	now := time.Date(2026, time.March, 10, 23, 0, 0, 0, berlin)

	earlierToday := time.Date(2026, time.March, 10, 0, 1, 0, 0, berlin)
	if IsOverdue(earlierToday, now) {
		t.Fatal("task due earlier today must not be overdue")
	}

	yesterday := time.Date(2026, time.March, 9, 23, 59, 0, 0, berlin)
	if !IsOverdue(yesterday, now) {
		t.Fatal("task due yesterday must be overdue")
	}

	// Same check right after midnight.
	now = time.Date(2026, time.March, 10, 0, 0, 1, 0, berlin)
	if !IsOverdue(yesterday, now) {
		t.Fatal("task due yesterday must be overdue at any time of day")
	}
	if IsOverdue(earlierToday, now) {
		t.Fatal("task due later today must not be overdue")
	}
}

func TestCategoryByIDFallsBackToNone(t *testing.T) {
	if got := CategoryByID("work"); got.Name != "Arbeit" {
		t.Fatalf("unexpected category: %+v", got)
	}
	for _, id := range []string{"", "unknown"} {
		if got := CategoryByID(id); got.ID != DefaultCategoryID {
			t.Fatalf("CategoryByID(%q) = %+v, want sentinel", id, got)
		}
	}
}
