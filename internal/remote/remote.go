// Package remote defines the target a drained sync task is replayed against,
// plus the available backends. The contract is intentionally narrow: perform
// the equivalent create/update/delete remotely, report success or failure.
package remote

import (
	"context"
	"fmt"

	"nexuserp/backend/internal/domain"
)

// Store performs the remote side of one mutation intent.
type Store interface {
	// Apply mirrors the task against the remote collection. A nil return
	// means the mutation is durable remotely and the task may be cleared.
	Apply(ctx context.Context, task domain.SyncTask) error
	// Name identifies the backend in logs and status reports.
	Name() string
}

// SyncError wraps a failed remote operation. The sync driver keeps the task
// queued when it sees one; it is never surfaced to the mutating caller.
type SyncError struct {
	Backend    string
	Collection string
	TaskID     uint64
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("remote %s: task %d (%s): %v", e.Backend, e.TaskID, e.Collection, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func syncErr(backend string, task domain.SyncTask, err error) error {
	return &SyncError{Backend: backend, Collection: task.Collection, TaskID: task.ID, Err: err}
}

// NoopStore accepts every task without doing anything. It is the default
// backend when no remote target is configured, standing in for a sync
// service that has not been provisioned yet.
type NoopStore struct{}

func (NoopStore) Apply(_ context.Context, _ domain.SyncTask) error { return nil }

func (NoopStore) Name() string { return "noop" }
