// Package cache provides the gateway's shared-state caches: token-bucket
// rate limiting and revocation-list lookups, both backed by Redis so a
// fleet of gateway instances shares one limit and one blocklist.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a token-bucket rate limit per key (spec §4.3 dispatch
// rate limiting; the dispatcher keys buckets by a tool's peer gateway ID,
// or by tool name for tools without one).
type Limiter interface {
	// Allow reports whether one unit of work may proceed under key's
	// bucket, refilling at refillPerSec tokens/second up to burst.
	Allow(ctx context.Context, key string, burst int, refillPerSec float64) (bool, error)
}

// RedisLimiter implements Limiter with a Lua script performing an atomic
// refill-then-take against a Redis hash, so concurrent gateway instances
// share one bucket.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter builds a RedisLimiter using client, namespacing keys
// under prefix.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "gw:ratelimit:"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// tokenBucketScript atomically computes the current token count from
// elapsed time since the last refill, decrements one token if available,
// and persists the new state. Returns 1 if the request is allowed, 0
// otherwise.
const tokenBucketScript = `
local key = KEYS[1]
local burst = tonumber(ARGV[1])
local refill_per_sec = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])

if tokens == nil then
  tokens = burst
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + elapsed * refill_per_sec)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("EXPIRE", key, 3600)

return allowed
`

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, burst int, refillPerSec float64) (bool, error) {
	now := float64(time.Now().UnixNano()) / 1e9
	res, err := l.client.Eval(ctx, tokenBucketScript, []string{l.prefix + key}, burst, refillPerSec, now).Result()
	if err != nil {
		return false, fmt.Errorf("cache: rate limit eval: %w", err)
	}
	allowed, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("cache: unexpected rate limit script result %T", res)
	}
	return allowed == 1, nil
}
