package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todoclient/domain"
)

// Store is the sole boundary between the view-model and the remote task
// store. Writes go straight to the task table; every successful write
// publishes a change event so live subscriptions refetch. The store keeps
// no local copy of anything.
type Store struct {
	table   *aztables.Client
	pub     *redis.Client
	channel string
	logger  *log.Logger
}

// New creates a Store from the given table connection string. The redis
// client carries change events on the named channel.
func New(connStr, tasksTable string, rc *redis.Client, channel string, logger *log.Logger) (*Store, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &Store{
		table:   svc.NewClient(tasksTable),
		pub:     rc,
		channel: channel,
		logger:  logger,
	}, nil
}

const edmInt64 = "Edm.Int64"

// Int64 properties cross the wire as strings with an Edm.Int64 annotation;
// an unannotated number would be stored as Int32 (or rejected) and a typed
// one comes back from the service quoted.
type taskEntity struct {
	aztables.Entity
	Title         string  `json:"Title"`
	Done          bool    `json:"Done"`
	Category      string  `json:"Category"`
	DueDate       *int64  `json:"DueDate,omitempty,string"`
	DueDateType   *string `json:"DueDate@odata.type,omitempty"`
	CreatedAt     int64   `json:"CreatedAt,string"`
	CreatedAtType string  `json:"CreatedAt@odata.type"`
}

// taskUpdate carries the merged fields of a partial update. A due-date
// clear never goes through here; see clearDueDate.
type taskUpdate struct {
	aztables.Entity
	Title       *string `json:"Title,omitempty"`
	Done        *bool   `json:"Done,omitempty"`
	Category    *string `json:"Category,omitempty"`
	DueDate     *int64  `json:"DueDate,omitempty,string"`
	DueDateType *string `json:"DueDate@odata.type,omitempty"`
}

func createEntity(ownerID, id string, in domain.NewTaskInput, createdAt int64) taskEntity {
	ent := taskEntity{
		Entity:        aztables.Entity{PartitionKey: ownerID, RowKey: id},
		Title:         in.Title,
		Category:      in.CategoryID,
		CreatedAt:     createdAt,
		CreatedAtType: edmInt64,
	}
	if in.DueDate != nil {
		due := in.DueDate.UnixMilli()
		edm := edmInt64
		ent.DueDate = &due
		ent.DueDateType = &edm
	}
	return ent
}

func patchEntity(ownerID, id string, p domain.TaskPatch) taskUpdate {
	u := taskUpdate{Entity: aztables.Entity{PartitionKey: ownerID, RowKey: id}}
	u.Title = p.Title
	u.Done = p.Done
	u.Category = p.CategoryID
	if p.DueDate != nil {
		due := p.DueDate.UnixMilli()
		edm := edmInt64
		u.DueDate = &due
		u.DueDateType = &edm
	}
	return u
}

// clearedEntity rebuilds the stored entity without its due date, applying
// whatever else the patch touches on the way.
func clearedEntity(ent taskEntity, p domain.TaskPatch) taskEntity {
	if p.Title != nil {
		ent.Title = *p.Title
	}
	if p.Done != nil {
		ent.Done = *p.Done
	}
	if p.CategoryID != nil {
		ent.Category = *p.CategoryID
	}
	ent.DueDate = nil
	ent.DueDateType = nil
	return ent
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	task := domain.Task{
		ID:         ent.RowKey,
		OwnerID:    ent.PartitionKey,
		Title:      ent.Title,
		Done:       ent.Done,
		CategoryID: ent.Category,
		CreatedAt:  ent.CreatedAt,
	}
	if ent.DueDate != nil {
		due := time.UnixMilli(*ent.DueDate)
		task.DueDate = &due
	}
	return task, nil
}

// CreateTask adds a task for the owner and returns the assigned id.
// CreatedAt is assigned here, once, from a monotonic clock; updates never
// touch it. No validation happens at this layer.
func (s *Store) CreateTask(ctx context.Context, ownerID string, in domain.NewTaskInput) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(createEntity(ownerID, id, in, nextCreatedAt()))
	if err != nil {
		return "", &domain.WriteError{Op: "create task", Err: err}
	}
	start := time.Now()
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		return "", &domain.WriteError{Op: "create task", Err: err}
	}
	s.observeWrite("create", start)
	s.publish(ctx, ownerID, id, domain.TaskCreated)
	return id, nil
}

// UpdateTask merges the non-nil patch fields into the stored task. It fails
// with a WriteError when the task no longer exists or the write is
// rejected; it never succeeds silently against a missing task.
func (s *Store) UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error {
	if patch.ClearDueDate {
		return s.clearDueDate(ctx, ownerID, id, patch)
	}
	payload, err := json.Marshal(patchEntity(ownerID, id, patch))
	if err != nil {
		return &domain.WriteError{Op: "update task", Err: err}
	}
	start := time.Now()
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeMerge,
	})
	if err != nil {
		return &domain.WriteError{Op: "update task", Err: err}
	}
	s.observeWrite("update", start)
	s.publish(ctx, ownerID, id, domain.TaskUpdated)
	return nil
}

// clearDueDate removes the due date with a fetch and a full replace. A
// merge cannot do it: the table service drops null-valued properties from
// a Merge Entity request, so a merged null would leave the stored value in
// place while the caller sees success.
func (s *Store) clearDueDate(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error {
	resp, err := s.table.GetEntity(ctx, ownerID, id, nil)
	if err != nil {
		return &domain.WriteError{Op: "update task", Err: err}
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return &domain.WriteError{Op: "update task", Err: err}
	}
	payload, err := json.Marshal(clearedEntity(ent, patch))
	if err != nil {
		return &domain.WriteError{Op: "update task", Err: err}
	}
	start := time.Now()
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeReplace,
	})
	if err != nil {
		return &domain.WriteError{Op: "update task", Err: err}
	}
	s.observeWrite("update", start)
	s.publish(ctx, ownerID, id, domain.TaskUpdated)
	return nil
}

// DeleteTask removes the task. Deleting an id the store no longer knows is
// success: the outcome the caller asked for already holds. A change event
// is published either way so subscribers resync.
func (s *Store) DeleteTask(ctx context.Context, ownerID, id string) error {
	start := time.Now()
	if _, err := s.table.DeleteEntity(ctx, ownerID, id, nil); err != nil && !isNotFound(err) {
		return &domain.WriteError{Op: "delete task", Err: err}
	}
	s.observeWrite("delete", start)
	s.publish(ctx, ownerID, id, domain.TaskDeleted)
	return nil
}

// FetchTasks retrieves every task the owner has, in arrival order.
// Ordering and filtering are view-model concerns.
func (s *Store) FetchTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + ownerID + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			task, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// publish is best effort: the write above is already committed, and a
// missed event only delays the next snapshot until the following change.
func (s *Store) publish(ctx context.Context, ownerID, id, eventType string) {
	data, err := sonic.Marshal(domain.TaskChangedEvent{
		UserID:   ownerID,
		EntityID: id,
		Type:     eventType,
		Time:     time.Now().UnixMilli(),
	})
	if err != nil {
		s.logger.Errorf("marshal change event: %v", err)
		return
	}
	if err := s.pub.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Errorf("publish change event: %v", err)
	}
}

func (s *Store) observeWrite(op string, start time.Time) {
	s.logger.WithFields(log.Fields{
		"op":       op,
		"duration": time.Since(start),
	}).Debug("task write")
}
