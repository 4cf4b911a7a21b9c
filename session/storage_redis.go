package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps blobs in Redis under prefix+":"+key with a TTL, so an
// abandoned blob disappears on its own once the session could no longer be
// valid.
type RedisStorage struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStorage creates a [RedisStorage]. A ttl of zero stores keys without
// expiry.
func NewRedisStorage(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisStorage) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return data, nil
}

func (r *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	if err := r.redis.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
