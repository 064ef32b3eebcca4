package domain

import "time"

// Task represents a single to-do item owned by one user. The local list is
// a cache of the last store snapshot; the store remains the source of truth.
type Task struct {
	ID         string
	Title      string
	Done       bool
	OwnerID    string
	CategoryID string
	DueDate    *time.Time
	// CreatedAt is epoch milliseconds assigned by the store boundary at
	// create. Zero means the timestamp never arrived with the snapshot.
	CreatedAt int64
}

// NewTaskInput carries the fields of an add intent. Validation happens at
// the intent layer, not here and not in the store adapter.
type NewTaskInput struct {
	Title      string
	CategoryID string
	DueDate    *time.Time
}

// TaskPatch is a partial update. Nil fields are left untouched.
// ClearDueDate removes the due date; DueDate is ignored when it is set.
type TaskPatch struct {
	Title        *string
	Done         *bool
	CategoryID   *string
	DueDate      *time.Time
	ClearDueDate bool
}
