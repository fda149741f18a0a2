package governance

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes a bucket atomically.
// KEYS[1] = bucket key
// ARGV[1] = refill rate (tokens per second)
// ARGV[2] = capacity
// ARGV[3] = cost
// ARGV[4] = now (unix seconds, microsecond precision)
// ARGV[5] = key TTL in seconds
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, ttl)

return {allowed, tostring(tokens)}
`)

// RedisLimiter shares per-user buckets across processes through Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	policy RatePolicy
	prefix string
	clock  func() time.Time
}

// NewRedisLimiter creates a limiter using an existing client.
func NewRedisLimiter(client redis.UniversalClient, policy RatePolicy) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		policy: policy,
		prefix: "agora:votes:limiter:",
		clock:  time.Now,
	}
}

// DialRedisLimiter connects to addr and returns a limiter over it.
func DialRedisLimiter(addr, password string, db int, policy RatePolicy) *RedisLimiter {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisLimiter(rdb, policy)
}

// Key returns the Redis key holding userID's bucket.
func (l *RedisLimiter) Key(userID string) string {
	return l.prefix + userID
}

// ttlSeconds is long enough for an empty bucket to refill completely.
func (l *RedisLimiter) ttlSeconds() int {
	full := float64(l.policy.burst()) / l.policy.perSecond()
	ttl := int(full) + 1
	if ttl < 60 {
		ttl = 60
	}
	return ttl
}

func (l *RedisLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	now := float64(l.clock().UnixMicro()) / 1e6
	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.Key(userID)},
		l.policy.perSecond(), l.policy.burst(), 1, now, l.ttlSeconds()).Result()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}

	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return false, fmt.Errorf("redis limiter: unexpected script result %T", res)
	}
	allowed, _ := results[0].(int64)
	return allowed == 1, nil
}

// Close closes the underlying client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
