package domain

// Change event types published on the task updates channel after every
// successful write. Subscribers do not apply them incrementally; any event
// for the owner triggers a full refetch.
const (
	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskDeleted = "task-deleted"
)

// TaskChangedEvent notifies subscribers that one of a user's tasks changed.
type TaskChangedEvent struct {
	UserID   string `json:"UserId"`
	EntityID string `json:"EntityId"`
	Type     string `json:"Type"`
	Time     int64  `json:"Time"`
}
