package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript opens or advances a fixed window in one round trip. The expiry
// is only set when the window opens, so it stays anchored to the first hit.
var hitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if count == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore shares windows between instances through Redis.
// Redis expires keys itself, so it needs no sweep.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store whose keys are prefixed with prefix
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(clientKey string) string {
	return s.prefix + clientKey
}

// Hit implements Store
func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (Entry, error) {
	res, err := hitScript.Run(ctx, s.client, []string{s.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Entry{}, fmt.Errorf("redis hit script: %w", err)
	}
	if len(res) != 2 {
		return Entry{}, fmt.Errorf("redis hit script: unexpected reply length %d", len(res))
	}

	return Entry{
		Count:     int(res[0]),
		ResetTime: now.Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// Peek implements Store
func (s *RedisStore) Peek(ctx context.Context, key string, now time.Time) (Entry, bool, error) {
	pipe := s.client.Pipeline()
	countCmd := pipe.Get(ctx, s.key(key))
	ttlCmd := pipe.PTTL(ctx, s.key(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Entry{}, false, fmt.Errorf("redis peek: %w", err)
	}

	raw, err := countCmd.Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis peek: %w", err)
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis peek: invalid count %q: %w", raw, err)
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return Entry{}, false, nil
	}

	return Entry{Count: count, ResetTime: now.Add(ttl)}, true, nil
}

// Ping checks connectivity for health reporting
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
