package domain

import (
	"fmt"
	"time"
)

var germanMonthsShort = [...]string{
	"Jan.", "Feb.", "März", "Apr.", "Mai", "Juni",
	"Juli", "Aug.", "Sept.", "Okt.", "Nov.", "Dez.",
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsOverdue reports whether due falls on a calendar day before now's day.
// A task due earlier today is not overdue.
func IsOverdue(due, now time.Time) bool {
	return startOfDay(due).Before(startOfDay(now))
}

// DueLabel renders a due date relative to now: "Heute" for the current
// calendar day, "Morgen" for the next, otherwise a short German date that
// carries the year only when it differs from now's year.
func DueLabel(due, now time.Time) string {
	dueDay := startOfDay(due)
	today := startOfDay(now)
	switch {
	case dueDay.Equal(today):
		return "Heute"
	case dueDay.Equal(today.AddDate(0, 0, 1)):
		return "Morgen"
	}
	label := fmt.Sprintf("%d. %s", due.Day(), germanMonthsShort[due.Month()-1])
	if due.Year() != now.Year() {
		label = fmt.Sprintf("%s %d", label, due.Year())
	}
	return label
}
