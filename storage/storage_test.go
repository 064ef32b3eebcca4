package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todoclient/domain"
)

func TestCreateEntityDefaults(t *testing.T) {
	ent := createEntity("user-1", "task-1", domain.NewTaskInput{
		Title:      "Buy milk",
		CategoryID: "none",
	}, 1234)

	if ent.PartitionKey != "user-1" || ent.RowKey != "task-1" {
		t.Fatalf("unexpected keys: %+v", ent)
	}
	if ent.Done {
		t.Fatalf("new task must not be done: %+v", ent)
	}
	if ent.CreatedAt != 1234 || ent.CreatedAtType != "Edm.Int64" {
		t.Fatalf("unexpected CreatedAt: %+v", ent)
	}
	if ent.DueDate != nil || ent.DueDateType != nil {
		t.Fatal("due date must be absent when not provided")
	}
}

func TestCreateEntityWithDueDate(t *testing.T) {
	due := time.UnixMilli(1700000000000)
	ent := createEntity("user-1", "task-1", domain.NewTaskInput{
		Title:      "Dentist",
		CategoryID: "health",
		DueDate:    &due,
	}, 1234)

	if ent.DueDate == nil || *ent.DueDate != 1700000000000 {
		t.Fatalf("unexpected DueDate: %+v", ent)
	}
	if ent.DueDateType == nil || *ent.DueDateType != "Edm.Int64" {
		t.Fatalf("DueDate must be typed Edm.Int64: %+v", ent)
	}
	if ent.Category != "health" {
		t.Fatalf("unexpected Category: %+v", ent)
	}
}

func TestCreateEntityWireShape(t *testing.T) {
	due := time.UnixMilli(1700000000000)
	payload, err := json.Marshal(createEntity("user-1", "task-1", domain.NewTaskInput{
		Title:   "Dentist",
		DueDate: &due,
	}, 1690000000000))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// Int64 values must travel quoted, with their type annotation beside
	// them; a bare JSON number would not be stored as Int64.
	if raw["CreatedAt"] != "1690000000000" || raw["CreatedAt@odata.type"] != "Edm.Int64" {
		t.Fatalf("CreatedAt not typed on the wire: %s", payload)
	}
	if raw["DueDate"] != "1700000000000" || raw["DueDate@odata.type"] != "Edm.Int64" {
		t.Fatalf("DueDate not typed on the wire: %s", payload)
	}
}

func TestPatchEntityOnlyTouchedFields(t *testing.T) {
	done := true
	payload, err := json.Marshal(patchEntity("user-1", "task-1", domain.TaskPatch{Done: &done}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := map[string]any{"PartitionKey": "user-1", "RowKey": "task-1", "Done": true}
	for k, v := range want {
		if raw[k] != v {
			t.Fatalf("field %s = %v, want %v", k, raw[k], v)
		}
	}
	for _, k := range []string{"Title", "Category", "DueDate", "DueDate@odata.type"} {
		if _, ok := raw[k]; ok {
			t.Fatalf("patch leaked field %s: %s", k, payload)
		}
	}
}

func TestPatchEntityTypesDueDate(t *testing.T) {
	due := time.UnixMilli(1700000000000)
	payload, err := json.Marshal(patchEntity("user-1", "task-1", domain.TaskPatch{DueDate: &due}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["DueDate"] != "1700000000000" || raw["DueDate@odata.type"] != "Edm.Int64" {
		t.Fatalf("DueDate not typed on the wire: %s", payload)
	}
}

func TestClearedEntityDropsDueDate(t *testing.T) {
	due := int64(1700000000000)
	edm := "Edm.Int64"
	stored := taskEntity{
		Entity:        aztables.Entity{PartitionKey: "user-1", RowKey: "task-1"},
		Title:         "Dentist",
		Category:      "health",
		DueDate:       &due,
		DueDateType:   &edm,
		CreatedAt:     1234,
		CreatedAtType: edm,
	}
	newDue := time.UnixMilli(1800000000000)
	done := true
	ent := clearedEntity(stored, domain.TaskPatch{
		Done:         &done,
		DueDate:      &newDue,
		ClearDueDate: true,
	})

	if ent.DueDate != nil || ent.DueDateType != nil {
		t.Fatalf("clear must win over a provided due date: %+v", ent)
	}
	if !ent.Done {
		t.Fatalf("other patched fields must still apply: %+v", ent)
	}
	if ent.Title != "Dentist" || ent.CreatedAt != 1234 {
		t.Fatalf("untouched fields must survive the replace: %+v", ent)
	}

	payload, err := json.Marshal(ent)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// The replacement payload must omit the property entirely; a null
	// would be discarded by a merge and a replace has no use for it.
	if _, ok := raw["DueDate"]; ok {
		t.Fatalf("cleared due date leaked into the payload: %s", payload)
	}
}

func TestDecodeTaskEntity(t *testing.T) {
	raw := []byte(`{
		"PartitionKey": "user-1",
		"RowKey": "task-1",
		"Title": "Buy milk",
		"Done": true,
		"Category": "shopping",
		"DueDate": "1700000000000",
		"DueDate@odata.type": "Edm.Int64",
		"CreatedAt": "1690000000000",
		"CreatedAt@odata.type": "Edm.Int64"
	}`)
	task, err := decodeTaskEntity(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.ID != "task-1" || task.OwnerID != "user-1" || !task.Done {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.CategoryID != "shopping" || task.CreatedAt != 1690000000000 {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.DueDate == nil || task.DueDate.UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected due date: %+v", task.DueDate)
	}
}

func TestDecodeTaskEntityOptionalFieldsAbsent(t *testing.T) {
	raw := []byte(`{"PartitionKey": "user-1", "RowKey": "task-2", "Title": "Old"}`)
	task, err := decodeTaskEntity(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.DueDate != nil {
		t.Fatalf("absent due date must stay nil: %+v", task.DueDate)
	}
	if task.CreatedAt != 0 {
		t.Fatalf("absent CreatedAt must decode to zero: %d", task.CreatedAt)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&azcore.ResponseError{StatusCode: 404, ErrorCode: "ResourceNotFound"}) {
		t.Fatal("404 response must classify as not found")
	}
	if isNotFound(&azcore.ResponseError{StatusCode: 403, ErrorCode: "Forbidden"}) {
		t.Fatal("403 response must not classify as not found")
	}
	if isNotFound(errors.New("connection reset")) {
		t.Fatal("plain errors must not classify as not found")
	}
}

func TestNextCreatedAtStrictlyIncreasing(t *testing.T) {
	prev := nextCreatedAt()
	for i := 0; i < 1000; i++ {
		next := nextCreatedAt()
		if next <= prev {
			t.Fatalf("timestamps must increase: %d then %d", prev, next)
		}
		prev = next
	}
}

func TestPublishEmitsChangeEvent(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "task-updates")
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	s := &Store{pub: client, channel: "task-updates", logger: log.New()}
	s.publish(ctx, "user-1", "task-1", domain.TaskUpdated)

	select {
	case msg := <-sub.Channel():
		var ev domain.TaskChangedEvent
		if err := sonic.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.UserID != "user-1" || ev.EntityID != "task-1" || ev.Type != domain.TaskUpdated {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change event received")
	}
}
