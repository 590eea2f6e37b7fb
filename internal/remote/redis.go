package remote

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"nexuserp/backend/internal/domain"
)

const redisKeyPrefix = "nexuserp:"

// RedisStore keeps each remote collection as a hash of id -> entity JSON.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Apply(ctx context.Context, task domain.SyncTask) error {
	id := task.PayloadID()
	if id == "" {
		return syncErr(s.Name(), task, fmt.Errorf("payload has no id"))
	}
	key := redisKeyPrefix + task.Collection

	switch task.Type {
	case domain.MutationCreate, domain.MutationUpdate:
		if err := s.client.HSet(ctx, key, id, string(task.Payload)).Err(); err != nil {
			return syncErr(s.Name(), task, err)
		}
	case domain.MutationDelete:
		if err := s.client.HDel(ctx, key, id).Err(); err != nil {
			return syncErr(s.Name(), task, err)
		}
	default:
		return syncErr(s.Name(), task, fmt.Errorf("unknown mutation type %q", task.Type))
	}
	return nil
}
