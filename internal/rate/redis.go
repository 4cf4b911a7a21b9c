package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1] ledger key
// ARGV[1] now (ms), ARGV[2] cutoff (ms, inclusive), ARGV[3] max,
// ARGV[4] member, ARGV[5] window (ms)
const allowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`

var allowLua = redis.NewScript(allowScript)

// Redis is a [Ledger] stored as one sorted set per key, scored by attempt time
// in milliseconds. The set's TTL tracks the window so idle keys disappear.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedis creates a Redis-backed ledger. A nil now uses time.Now.
func NewRedis(client redis.UniversalClient, prefix string, now func() time.Time) *Redis {
	if now == nil {
		now = time.Now
	}
	return &Redis{
		redis:  client,
		prefix: prefix,
		now:    now,
	}
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *Redis) Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, ErrInvalidPolicy
	}

	nowMs := r.now().UnixMilli()
	res, err := allowLua.Run(ctx, r.redis,
		[]string{r.key(key)},
		nowMs,
		nowMs-window.Milliseconds(),
		max,
		uuid.NewString(),
		window.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return res == 1, nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
