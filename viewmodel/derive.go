package viewmodel

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"todoclient/domain"
)

// StatusFilter narrows the list by completion state.
type StatusFilter string

const (
	StatusAll    StatusFilter = "all"
	StatusActive StatusFilter = "active"
	StatusDone   StatusFilter = "done"
)

// SortKey selects the ordering of the rendered list.
type SortKey string

const (
	SortNewest  SortKey = "newest"
	SortOldest  SortKey = "oldest"
	SortName    SortKey = "name"
	SortDueDate SortKey = "dueDate"
)

// Query is the UI-only filter and sort state applied to the raw task list.
// The zero CategoryID means no category filter.
type Query struct {
	Search     string
	Status     StatusFilter
	CategoryID string
	Sort       SortKey
}

// Derive computes the exact sequence to render: filter, then a stable sort.
// It is a pure function of its inputs; tasks are never mutated, and
// identical inputs always yield the identical order.
func Derive(tasks []domain.Task, q Query) []domain.Task {
	search := strings.ToLower(q.Search)
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) {
			continue
		}
		switch q.Status {
		case StatusActive:
			if t.Done {
				continue
			}
		case StatusDone:
			if !t.Done {
				continue
			}
		}
		if q.CategoryID != "" && t.CategoryID != q.CategoryID {
			continue
		}
		out = append(out, t)
	}

	switch q.Sort {
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt < out[j].CreatedAt
		})
	case SortName:
		// Locale-aware: the app's titles are German.
		c := collate.New(language.German)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Title, out[j].Title) < 0
		})
	case SortDueDate:
		// Ascending; tasks without a due date always sort last.
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].DueDate, out[j].DueDate
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return a.Before(*b)
			}
		})
	default: // SortNewest
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt > out[j].CreatedAt
		})
	}
	return out
}
