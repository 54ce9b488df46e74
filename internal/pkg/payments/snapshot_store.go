package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const returnSessionKeyPrefix = "payment:return:"

// RedisSnapshotStore keeps return session snapshots under payment:return:<session>.
type RedisSnapshotStore struct {
	client *redis.Client
}

func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

func (s *RedisSnapshotStore) Save(ctx context.Context, snap Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, returnSessionKeyPrefix+snap.Session, data, ttl).Err()
}

func (s *RedisSnapshotStore) Load(ctx context.Context, session string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, returnSessionKeyPrefix+session).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
