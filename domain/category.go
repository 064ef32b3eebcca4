package domain

// Category tags a task with one entry of a small fixed set. The set is not
// user-extensible; "none" is the sentinel for untagged tasks.
type Category struct {
	ID    string
	Name  string
	Color string
}

// DefaultCategoryID is assigned when an add intent names no category.
const DefaultCategoryID = "none"

// Categories lists every known category, sentinel first.
var Categories = []Category{
	{ID: "none", Name: "Keine", Color: "#8E8E93"},
	{ID: "work", Name: "Arbeit", Color: "#007AFF"},
	{ID: "personal", Name: "Privat", Color: "#34C759"},
	{ID: "shopping", Name: "Einkaufen", Color: "#FF9500"},
	{ID: "health", Name: "Gesundheit", Color: "#FF2D55"},
	{ID: "finance", Name: "Finanzen", Color: "#5856D6"},
}

// CategoryByID resolves an id to its category, falling back to the sentinel
// for ids that are unknown or empty.
func CategoryByID(id string) Category {
	for _, c := range Categories {
		if c.ID == id {
			return c
		}
	}
	return Categories[0]
}
