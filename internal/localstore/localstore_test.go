package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"nexuserp/backend/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := domain.Product{ID: "p1", Name: "Widget", Stock: 3}
	if err := db.Put(ctx, domain.CollectionProducts, p.ID, p); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got domain.Product
	if err := db.Get(ctx, domain.CollectionProducts, "p1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Widget" || got.Stock != 3 {
		t.Fatalf("Get returned %+v", got)
	}

	if err := db.Delete(ctx, domain.CollectionProducts, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	err := db.Get(ctx, domain.CollectionProducts, "p1", &got)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: got %v, want ErrNotFound", err)
	}

	// Put and Delete bypass the queue.
	tasks, err := db.PendingTasks(ctx)
	if err != nil {
		t.Fatalf("PendingTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("got %d queued tasks, want 0", len(tasks))
	}
}

func TestApplyMutationsEnqueuesInOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	muts := []Mutation{
		{Collection: domain.CollectionProducts, Type: domain.MutationCreate, ID: "p1", Record: domain.Product{ID: "p1", Name: "A"}},
		{Collection: domain.CollectionCustomers, Type: domain.MutationCreate, ID: "c1", Record: domain.Customer{ID: "c1", Name: "B"}},
		{Collection: domain.CollectionProducts, Type: domain.MutationDelete, ID: "p1"},
	}
	tasks, err := db.ApplyMutations(ctx, muts, true)
	if err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}

	pending, err := db.PendingTasks(ctx)
	if err != nil {
		t.Fatalf("PendingTasks: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d pending, want 3", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i].ID <= pending[i-1].ID {
			t.Fatalf("queue not in FIFO order: %d after %d", pending[i].ID, pending[i-1].ID)
		}
	}
	if pending[0].Collection != domain.CollectionProducts || pending[0].Type != domain.MutationCreate {
		t.Fatalf("first task = %+v", pending[0])
	}
	if pending[2].Type != domain.MutationDelete {
		t.Fatalf("last task = %+v", pending[2])
	}
	if pending[2].PayloadID() != "p1" {
		t.Fatalf("delete payload id = %q, want p1", pending[2].PayloadID())
	}

	// The entity delete actually landed.
	var got domain.Product
	if err := db.Get(ctx, domain.CollectionProducts, "p1", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get deleted product: %v, want ErrNotFound", err)
	}
}

func TestApplyMutationsAtomicRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	muts := []Mutation{
		{Collection: domain.CollectionProducts, Type: domain.MutationCreate, ID: "p1", Record: domain.Product{ID: "p1"}},
		{Collection: "no_such_collection", Type: domain.MutationCreate, ID: "x", Record: struct{}{}},
	}
	if _, err := db.ApplyMutations(ctx, muts, true); err == nil {
		t.Fatal("expected error for unknown collection")
	}

	// The whole batch rolled back: no entity write, no queue entry.
	var got domain.Product
	if err := db.Get(ctx, domain.CollectionProducts, "p1", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after failed batch: %v, want ErrNotFound", err)
	}
	pending, err := db.PendingTasks(ctx)
	if err != nil {
		t.Fatalf("PendingTasks: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("got %d pending after failed batch, want 0", len(pending))
	}
}

func TestApplyMutationsRejectsMissingID(t *testing.T) {
	db := openTestDB(t)

	_, err := db.ApplyMutations(context.Background(), []Mutation{
		{Collection: domain.CollectionProducts, Type: domain.MutationCreate, Record: domain.Product{}},
	}, true)
	if err == nil {
		t.Fatal("expected error for mutation without id")
	}
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("error %T is not a StorageError", err)
	}
}

func TestClearAndUpdateTask(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, err := db.Enqueue(ctx, domain.MutationCreate, domain.CollectionProducts, map[string]string{"id": "p1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := db.Enqueue(ctx, domain.MutationUpdate, domain.CollectionProducts, map[string]string{"id": "p1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	first.Attempts = 2
	if err := db.UpdateTask(ctx, first); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	pending, err := db.PendingTasks(ctx)
	if err != nil {
		t.Fatalf("PendingTasks: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[0].Attempts != 2 {
		t.Fatalf("after UpdateTask pending = %+v", pending)
	}

	if err := db.ClearTask(ctx, first.ID); err != nil {
		t.Fatalf("ClearTask: %v", err)
	}
	pending, err = db.PendingTasks(ctx)
	if err != nil {
		t.Fatalf("PendingTasks: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("after ClearTask pending = %+v", pending)
	}
}

func TestMoveToDeadLetter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task, err := db.Enqueue(ctx, domain.MutationDelete, domain.CollectionCustomers, map[string]string{"id": "c1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	task.Attempts = 5
	if err := db.MoveToDeadLetter(ctx, task); err != nil {
		t.Fatalf("MoveToDeadLetter: %v", err)
	}

	pending, err := db.PendingTasks(ctx)
	if err != nil {
		t.Fatalf("PendingTasks: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after dead-letter = %d, want 0", len(pending))
	}
	dead, err := db.DeadLetterTasks(ctx)
	if err != nil {
		t.Fatalf("DeadLetterTasks: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != task.ID || dead[0].Attempts != 5 {
		t.Fatalf("dead letters = %+v", dead)
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.Enqueue(ctx, domain.MutationCreate, domain.CollectionProducts, map[string]string{"id": "p1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	pending, err := db.PendingTasks(ctx)
	if err != nil {
		t.Fatalf("PendingTasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending after reopen, want 1", len(pending))
	}
}
