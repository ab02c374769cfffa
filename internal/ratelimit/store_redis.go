package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisBucketKeyPrefix = "vsauth:rl:"

// allowScript trims the window, checks the count, and records the request as
// one atomic unit on the server, so concurrent replicas cannot both read
// count == limit-1 and sneak under the limit. Returns {allowed, count} with
// count taken after the add on admission.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[2]) then
	return {0, count}
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1, count + 1}
`)

// RedisBucketStore implements BucketStore on a Redis sorted set per key,
// scored by request time. Shared across replicas.
type RedisBucketStore struct {
	client *redis.Client
}

func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	cutoff := now.Add(-window)
	bucketKey := redisBucketKeyPrefix + key

	raw, err := allowScript.Run(ctx, s.client, []string{bucketKey},
		cutoff.UnixNano(), limit, now.UnixNano(), uuid.NewString(), window.Milliseconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit admission: %w", err)
	}
	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return nil, fmt.Errorf("rate limit admission: unexpected reply %v", raw)
	}
	allowed, _ := reply[0].(int64)
	count, _ := reply[1].(int64)

	result := &Result{
		Allowed: allowed == 1,
		Limit:   limit,
		ResetAt: now.Add(window),
	}
	if result.Allowed {
		result.Remaining = max(limit-int(count), 0)
	}
	return result, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisBucketKeyPrefix+key).Err()
}
