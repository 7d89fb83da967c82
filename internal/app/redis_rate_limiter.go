package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// transferRateLimitScript counts one attempt and decides against the limit
// in a single round trip. ARGV[1] is the limit, ARGV[2] the window in
// milliseconds. It returns {allowed, count, retry_after_ms}; retry_after_ms
// is zero while the caller is under the limit.
var transferRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current <= tonumber(ARGV[1]) then
  return {1, current, 0}
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[2])
end
return {0, current, ttl}
`)

// RateLimitDecision is the outcome of one rate-limit check. RetryAfter is
// populated only when the attempt was refused, rounded up to whole seconds
// so it can feed a Retry-After header directly.
type RateLimitDecision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// RedisRateLimiter enforces a fixed-window limit on transfer initiation,
// shared across service instances through Redis.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "lumenbank:rate_limit"
	}
	return &RedisRateLimiter{client: client, prefix: trimmed}
}

// Allow counts one attempt for subject within scope and decides it against
// the limit. A nil limiter, missing key parts, or a non-positive limit
// disables limiting and allows the attempt.
func (r *RedisRateLimiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (RateLimitDecision, error) {
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if r == nil || r.client == nil || limit <= 0 || window <= 0 || scope == "" || subject == "" {
		return RateLimitDecision{Allowed: true}, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, scope, subject)
	raw, err := transferRateLimitScript.Run(ctx, r.client, []string{key}, limit, windowMs).Result()
	if err != nil {
		return RateLimitDecision{}, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return RateLimitDecision{}, fmt.Errorf("unexpected rate limit script result shape: %T", raw)
	}
	allowed, okAllowed := values[0].(int64)
	count, okCount := values[1].(int64)
	retryMs, okRetry := values[2].(int64)
	if !okAllowed || !okCount || !okRetry {
		return RateLimitDecision{}, fmt.Errorf("unexpected rate limit script result types: %v", values)
	}

	decision := RateLimitDecision{Allowed: allowed == 1, Count: int(count)}
	if !decision.Allowed {
		decision.RetryAfter = (time.Duration(retryMs)*time.Millisecond + time.Second - 1).Truncate(time.Second)
		if decision.RetryAfter < time.Second {
			decision.RetryAfter = time.Second
		}
	}
	return decision, nil
}
