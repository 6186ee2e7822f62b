package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for a sliding window on an ordered set.
// KEYS[1] = key
// ARGV[1] = now_ms
// ARGV[2] = window_ms
// ARGV[3] = limit
// ARGV[4] = member (unique)
const luaSlidingWindow = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

-- remove expired
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
-- add current hit
redis.call('ZADD', key, 'NX', now, member)
local count = redis.call('ZCARD', key)
-- keep TTL ~ window
redis.call('PEXPIRE', key, window)

if count > limit then
  local earliest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  local earliestScore = tonumber(earliest[2]) or (now - window)
  local retry_ms = window - (now - earliestScore)
  if retry_ms < 0 then retry_ms = 0 end
  return {0, count, retry_ms}
end
return {1, count, 0}
`

type SlidingWindowLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	script *redis.Script
}

func NewSlidingWindowLimiter(
	rdb *redis.Client,
	prefix string,
	limit int,
	window time.Duration,
) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  limit,
		window: window,
		script: redis.NewScript(luaSlidingWindow),
	}
}

// Allow registers a hit for id and reports whether it fits the window.
// The third return is how long the caller should wait before retrying.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, id string) (bool, int64, time.Duration, error) {
	member := make([]byte, 8)
	if _, err := rand.Read(member); err != nil {
		return false, 0, 0, err
	}

	key := KeyRateLimit(l.prefix, id)
	now := time.Now().UnixMilli()

	res, err := l.script.Run(
		ctx, l.rdb,
		[]string{key},
		now, l.window.Milliseconds(), l.limit, hex.EncodeToString(member),
	).Result()
	if err != nil {
		return false, 0, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	retryMs, _ := vals[2].(int64)

	return allowed == 1, count, time.Duration(retryMs) * time.Millisecond, nil
}
