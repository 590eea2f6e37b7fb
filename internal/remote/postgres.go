package remote

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"nexuserp/backend/internal/domain"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS synced_records (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
)`

// PostgresStore mirrors every collection into one upsert-only table keyed by
// (collection, id). Last write wins; there is no merge.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres remote: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres remote: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres remote: ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Apply(ctx context.Context, task domain.SyncTask) error {
	id := task.PayloadID()
	if id == "" {
		return syncErr(s.Name(), task, fmt.Errorf("payload has no id"))
	}

	switch task.Type {
	case domain.MutationCreate, domain.MutationUpdate:
		_, err := s.pool.Exec(ctx, `
			INSERT INTO synced_records (collection, id, payload, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (collection, id)
			DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
			task.Collection, id, task.Payload)
		if err != nil {
			return syncErr(s.Name(), task, err)
		}
	case domain.MutationDelete:
		_, err := s.pool.Exec(ctx,
			`DELETE FROM synced_records WHERE collection = $1 AND id = $2`,
			task.Collection, id)
		if err != nil {
			return syncErr(s.Name(), task, err)
		}
	default:
		return syncErr(s.Name(), task, fmt.Errorf("unknown mutation type %q", task.Type))
	}
	return nil
}
