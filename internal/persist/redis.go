package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/zonewarden/internal/domain"
)

const defaultSnapshotKey = "zonewarden:sessions"

// RedisStore persists the session snapshot as a single JSON value. SET is
// atomic on the server, so readers never observe a partial snapshot.
type RedisStore struct {
	rdb *goredis.Client
	key string
}

func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, key: defaultSnapshotKey}
}

func (r *RedisStore) Load(ctx context.Context) (map[uuid.UUID]domain.Session, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return map[uuid.UUID]domain.Session{}, nil
		}
		return map[uuid.UUID]domain.Session{}, fmt.Errorf("read session snapshot: %w", err)
	}

	var sessions map[uuid.UUID]domain.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return map[uuid.UUID]domain.Session{}, fmt.Errorf("%w: %w", domain.ErrCorruptState, err)
	}
	if sessions == nil {
		sessions = map[uuid.UUID]domain.Session{}
	}
	return sessions, nil
}

func (r *RedisStore) Save(ctx context.Context, sessions map[uuid.UUID]domain.Session) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("write session snapshot: %w", err)
	}
	return nil
}

// Ping reports whether the backing Redis is reachable, for readiness checks.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
