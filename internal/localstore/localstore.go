// Package localstore is the durable per-node persistence layer: named JSON
// collections plus the sync queue, backed by a single embedded bbolt file.
package localstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"nexuserp/backend/internal/domain"
)

var ErrNotFound = errors.New("not found")

// StorageError wraps any failure of the underlying store (file unavailable,
// locked, out of space). Callers must surface it rather than continue as if
// the write happened.
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("localstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("localstore: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, collection string, err error) error {
	return &StorageError{Op: op, Collection: collection, Err: err}
}

const (
	deadLetterBucket = "sync_dead_letter"
	metaBucket       = "meta"
)

// DB owns the bbolt handle. bbolt serializes writers internally, so a single
// shared *DB is safe for every caller (seed loader, facade, sync driver).
type DB struct {
	bolt *bolt.DB
}

// Open creates or opens the database file and ensures every required bucket
// exists. Idempotent; the one-second timeout turns a file locked by another
// process into an error instead of a hang.
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, storageErr("open", "", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range domain.EntityCollections() {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		for _, name := range []string{domain.CollectionSyncQueue, deadLetterBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, storageErr("migrate", "", err)
	}

	return &DB{bolt: bdb}, nil
}

func (db *DB) Close() error { return db.bolt.Close() }

// Path returns the location of the backing file.
func (db *DB) Path() string { return db.bolt.Path() }

// List decodes every record in a collection. Iteration follows bbolt key
// order; callers must not read meaning into it.
func List[T any](ctx context.Context, db *DB, collection string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("list", collection, err)
	}

	records := make([]T, 0, 16)
	err := db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("unknown collection %q", collection)
		}
		return b.ForEach(func(_, v []byte) error {
			var record T
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, storageErr("list", collection, err)
	}
	return records, nil
}

// Get decodes the record with the given id into out. Returns ErrNotFound
// when the key is absent.
func (db *DB) Get(ctx context.Context, collection string, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return storageErr("get", collection, err)
	}

	return db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return storageErr("get", collection, fmt.Errorf("unknown collection %q", collection))
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return storageErr("get", collection, err)
		}
		return nil
	})
}

// Put upserts a record by primary key, overwriting any prior value.
func (db *DB) Put(ctx context.Context, collection string, id string, record any) error {
	_, err := db.ApplyMutations(ctx, []Mutation{{
		Collection: collection,
		Type:       domain.MutationUpdate,
		ID:         id,
		Record:     record,
	}}, false)
	return err
}

// Delete removes a record by key; absent keys are a no-op.
func (db *DB) Delete(ctx context.Context, collection string, id string) error {
	_, err := db.ApplyMutations(ctx, []Mutation{{
		Collection: collection,
		Type:       domain.MutationDelete,
		ID:         id,
	}}, false)
	return err
}

// Count reports the number of records currently in a collection.
func (db *DB) Count(ctx context.Context, collection string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageErr("count", collection, err)
	}

	count := 0
	err := db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("unknown collection %q", collection)
		}
		count = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, storageErr("count", collection, err)
	}
	return count, nil
}

// Mutation is one entity write or delete to apply to the local store.
// Record is ignored for deletes.
type Mutation struct {
	Collection string
	Type       domain.MutationType
	ID         string
	Record     any
}

// ApplyMutations applies a batch of entity mutations in a single write
// transaction. When enqueue is true a sync task is appended for each
// mutation inside the same transaction, so the durable write and its sync
// intent commit or fail together. The returned tasks are in batch order.
func (db *DB) ApplyMutations(ctx context.Context, muts []Mutation, enqueue bool) ([]domain.SyncTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("apply", "", err)
	}
	if len(muts) == 0 {
		return nil, nil
	}

	tasks := make([]domain.SyncTask, 0, len(muts))
	err := db.bolt.Update(func(tx *bolt.Tx) error {
		queue := tx.Bucket([]byte(domain.CollectionSyncQueue))
		now := time.Now().UnixMilli()

		for _, mut := range muts {
			if mut.ID == "" {
				return fmt.Errorf("mutation on %s without id", mut.Collection)
			}
			b := tx.Bucket([]byte(mut.Collection))
			if b == nil {
				return fmt.Errorf("unknown collection %q", mut.Collection)
			}

			var payload []byte
			switch mut.Type {
			case domain.MutationCreate, domain.MutationUpdate:
				raw, err := json.Marshal(mut.Record)
				if err != nil {
					return err
				}
				if err := b.Put([]byte(mut.ID), raw); err != nil {
					return err
				}
				payload = raw
			case domain.MutationDelete:
				if err := b.Delete([]byte(mut.ID)); err != nil {
					return err
				}
				raw, err := json.Marshal(map[string]string{"id": mut.ID})
				if err != nil {
					return err
				}
				payload = raw
			default:
				return fmt.Errorf("unknown mutation type %q", mut.Type)
			}

			if !enqueue {
				continue
			}
			seq, err := queue.NextSequence()
			if err != nil {
				return err
			}
			task := domain.SyncTask{
				ID:         seq,
				Type:       mut.Type,
				Collection: mut.Collection,
				Payload:    payload,
				Timestamp:  now,
			}
			raw, err := json.Marshal(task)
			if err != nil {
				return err
			}
			if err := queue.Put(taskKey(seq), raw); err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("apply", muts[0].Collection, err)
	}
	return tasks, nil
}

// Enqueue appends a standalone sync task with a fresh auto-increment id and
// the current unix-millisecond timestamp.
func (db *DB) Enqueue(ctx context.Context, typ domain.MutationType, collection string, payload any) (domain.SyncTask, error) {
	if err := ctx.Err(); err != nil {
		return domain.SyncTask{}, storageErr("enqueue", collection, err)
	}

	var task domain.SyncTask
	err := db.bolt.Update(func(tx *bolt.Tx) error {
		queue := tx.Bucket([]byte(domain.CollectionSyncQueue))
		seq, err := queue.NextSequence()
		if err != nil {
			return err
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		task = domain.SyncTask{
			ID:         seq,
			Type:       typ,
			Collection: collection,
			Payload:    raw,
			Timestamp:  time.Now().UnixMilli(),
		}
		encoded, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return queue.Put(taskKey(seq), encoded)
	})
	if err != nil {
		return domain.SyncTask{}, storageErr("enqueue", collection, err)
	}
	return task, nil
}

// PendingTasks returns every queued task oldest-first. Big-endian sequence
// keys make bbolt's key order the enqueue order.
func (db *DB) PendingTasks(ctx context.Context) ([]domain.SyncTask, error) {
	return db.listTasks(ctx, domain.CollectionSyncQueue)
}

// DeadLetterTasks returns tasks parked after repeated sync failures.
func (db *DB) DeadLetterTasks(ctx context.Context) ([]domain.SyncTask, error) {
	return db.listTasks(ctx, deadLetterBucket)
}

func (db *DB) listTasks(ctx context.Context, bucket string) ([]domain.SyncTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("list", bucket, err)
	}

	tasks := make([]domain.SyncTask, 0, 16)
	err := db.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).ForEach(func(_, v []byte) error {
			var task domain.SyncTask
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			tasks = append(tasks, task)
			return nil
		})
	})
	if err != nil {
		return nil, storageErr("list", bucket, err)
	}
	return tasks, nil
}

// ClearTask removes a single task once it has been confirmed against the
// remote store.
func (db *DB) ClearTask(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return storageErr("clear", domain.CollectionSyncQueue, err)
	}

	err := db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(domain.CollectionSyncQueue)).Delete(taskKey(id))
	})
	if err != nil {
		return storageErr("clear", domain.CollectionSyncQueue, err)
	}
	return nil
}

// UpdateTask rewrites a queued task in place, preserving its position.
func (db *DB) UpdateTask(ctx context.Context, task domain.SyncTask) error {
	if err := ctx.Err(); err != nil {
		return storageErr("update", domain.CollectionSyncQueue, err)
	}

	err := db.bolt.Update(func(tx *bolt.Tx) error {
		raw, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(domain.CollectionSyncQueue)).Put(taskKey(task.ID), raw)
	})
	if err != nil {
		return storageErr("update", domain.CollectionSyncQueue, err)
	}
	return nil
}

// MoveToDeadLetter removes a task from the queue and parks it in the
// dead-letter bucket in one transaction.
func (db *DB) MoveToDeadLetter(ctx context.Context, task domain.SyncTask) error {
	if err := ctx.Err(); err != nil {
		return storageErr("dead-letter", domain.CollectionSyncQueue, err)
	}

	err := db.bolt.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(domain.CollectionSyncQueue)).Delete(taskKey(task.ID)); err != nil {
			return err
		}
		raw, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(deadLetterBucket)).Put(taskKey(task.ID), raw)
	})
	if err != nil {
		return storageErr("dead-letter", domain.CollectionSyncQueue, err)
	}
	return nil
}

func taskKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
