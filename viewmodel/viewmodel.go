package viewmodel

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"todoclient/domain"
)

// Writer issues task mutations against the remote store.
type Writer interface {
	CreateTask(ctx context.Context, ownerID string, in domain.NewTaskInput) (string, error)
	UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error
	DeleteTask(ctx context.Context, ownerID, id string) error
}

// ViewModel holds the task list of one signed-in user. Raw state mirrors
// the latest subscription snapshot exactly; there is no optimistic local
// mutation. Writes go out, and the next snapshot is authoritative.
type ViewModel struct {
	ownerID string
	writer  Writer
	logger  *log.Logger

	mu       sync.Mutex
	raw      []domain.Task
	loaded   bool
	closed   bool
	query    Query
	onChange func()
}

// New creates a view-model bound to one owner. The default query shows
// everything, newest first.
func New(ownerID string, w Writer, logger *log.Logger) *ViewModel {
	return &ViewModel{
		ownerID: ownerID,
		writer:  w,
		logger:  logger,
		query:   Query{Status: StatusAll, Sort: SortNewest},
	}
}

// OwnerID returns the user this view-model belongs to.
func (vm *ViewModel) OwnerID() string { return vm.ownerID }

// SetOnChange registers the re-render hook. It fires after every snapshot
// and every query change, outside the state lock.
func (vm *ViewModel) SetOnChange(fn func()) {
	vm.mu.Lock()
	vm.onChange = fn
	vm.mu.Unlock()
}

// ApplySnapshot replaces the raw task list with the snapshot, wholesale.
// Snapshots arriving after Close are dropped: a late snapshot from a torn
// down subscription must never leak into a newer session's state.
func (vm *ViewModel) ApplySnapshot(tasks []domain.Task) {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return
	}
	vm.raw = append([]domain.Task(nil), tasks...)
	vm.loaded = true
	fn := vm.onChange
	vm.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close detaches the view-model from further snapshots.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	vm.closed = true
	vm.mu.Unlock()
}

// Loaded reports whether at least one snapshot has arrived.
func (vm *ViewModel) Loaded() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.loaded
}

func (vm *ViewModel) setQuery(mutate func(*Query)) {
	vm.mu.Lock()
	mutate(&vm.query)
	fn := vm.onChange
	vm.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SetSearch updates the case-insensitive title filter.
func (vm *ViewModel) SetSearch(text string) {
	vm.setQuery(func(q *Query) { q.Search = text })
}

// SetStatus updates the completion filter.
func (vm *ViewModel) SetStatus(status StatusFilter) {
	vm.setQuery(func(q *Query) { q.Status = status })
}

// SetCategory updates the category filter; empty clears it.
func (vm *ViewModel) SetCategory(categoryID string) {
	vm.setQuery(func(q *Query) { q.CategoryID = categoryID })
}

// SetSort updates the sort key.
func (vm *ViewModel) SetSort(key SortKey) {
	vm.setQuery(func(q *Query) { q.Sort = key })
}

// Query returns the current filter and sort state.
func (vm *ViewModel) Query() Query {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.query
}

// Tasks derives the filtered, sorted sequence to render.
func (vm *ViewModel) Tasks() []domain.Task {
	vm.mu.Lock()
	raw := append([]domain.Task(nil), vm.raw...)
	q := vm.query
	vm.mu.Unlock()
	return Derive(raw, q)
}

// Row is one rendered list entry: the task plus its resolved category and
// due badge. Done tasks never carry a due badge, overdue or not.
type Row struct {
	domain.Task
	Category domain.Category
	DueLabel string
	Overdue  bool
	HasBadge bool
}

// Rows derives the rendered rows for the current wall clock.
func (vm *ViewModel) Rows() []Row {
	return vm.rowsAt(time.Now())
}

func (vm *ViewModel) rowsAt(now time.Time) []Row {
	tasks := vm.Tasks()
	rows := make([]Row, 0, len(tasks))
	for _, t := range tasks {
		row := Row{Task: t, Category: domain.CategoryByID(t.CategoryID)}
		if t.DueDate != nil && !t.Done {
			row.DueLabel = domain.DueLabel(*t.DueDate, now)
			row.Overdue = domain.IsOverdue(*t.DueDate, now)
			row.HasBadge = true
		}
		rows = append(rows, row)
	}
	return rows
}

// AddTask validates and issues a create intent. The stored task starts not
// done, in the sentinel category unless one was picked, with no due date
// unless one was picked.
func (vm *ViewModel) AddTask(ctx context.Context, title, categoryID string, due *time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &domain.ValidationError{Message: "Titel darf nicht leer sein"}
	}
	in := domain.NewTaskInput{
		Title:      title,
		CategoryID: domain.CategoryByID(categoryID).ID,
		DueDate:    due,
	}
	if _, err := vm.writer.CreateTask(ctx, vm.ownerID, in); err != nil {
		vm.logger.Errorf("add task: %v", err)
		return err
	}
	return nil
}

// ToggleDone flips the completion state the last snapshot knows for the
// task. Local state is not touched; the next snapshot reflects the write.
func (vm *ViewModel) ToggleDone(ctx context.Context, id string) error {
	vm.mu.Lock()
	var current *bool
	for _, t := range vm.raw {
		if t.ID == id {
			done := t.Done
			current = &done
			break
		}
	}
	vm.mu.Unlock()
	if current == nil {
		return &domain.WriteError{Op: "toggle task", Err: errUnknownTask}
	}
	next := !*current
	if err := vm.writer.UpdateTask(ctx, vm.ownerID, id, domain.TaskPatch{Done: &next}); err != nil {
		vm.logger.Errorf("toggle task: %v", err)
		return err
	}
	return nil
}

// Rename validates and issues a title update.
func (vm *ViewModel) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &domain.ValidationError{Message: "Titel darf nicht leer sein"}
	}
	if err := vm.writer.UpdateTask(ctx, vm.ownerID, id, domain.TaskPatch{Title: &title}); err != nil {
		vm.logger.Errorf("rename task: %v", err)
		return err
	}
	return nil
}

// Recategorize moves the task to another category of the fixed set.
// Unknown ids fall back to the sentinel category.
func (vm *ViewModel) Recategorize(ctx context.Context, id, categoryID string) error {
	cat := domain.CategoryByID(categoryID).ID
	if err := vm.writer.UpdateTask(ctx, vm.ownerID, id, domain.TaskPatch{CategoryID: &cat}); err != nil {
		vm.logger.Errorf("recategorize task: %v", err)
		return err
	}
	return nil
}

// Reschedule sets the due date, or clears it when due is nil.
func (vm *ViewModel) Reschedule(ctx context.Context, id string, due *time.Time) error {
	patch := domain.TaskPatch{DueDate: due, ClearDueDate: due == nil}
	if err := vm.writer.UpdateTask(ctx, vm.ownerID, id, patch); err != nil {
		vm.logger.Errorf("reschedule task: %v", err)
		return err
	}
	return nil
}

// RemoveTask issues a delete intent. Removing an id the store already
// forgot is success; see the store adapter's delete contract.
func (vm *ViewModel) RemoveTask(ctx context.Context, id string) error {
	if err := vm.writer.DeleteTask(ctx, vm.ownerID, id); err != nil {
		vm.logger.Errorf("remove task: %v", err)
		return err
	}
	return nil
}
