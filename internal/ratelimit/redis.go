package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the sorted set to the window, then records the hit
// only when the budget allows it. Scores are unix milliseconds.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  local retry = window
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, count, retry}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RedisWindow shares the sliding window across API instances using one sorted set per key.
type RedisWindow struct {
	client redis.Scripter
	rule   Rule
	prefix string
	now    func() time.Time
}

// NewRedisWindow constructs a RedisWindow. Keys are stored as prefix+key.
func NewRedisWindow(client redis.Scripter, rule Rule, prefix string) *RedisWindow {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisWindow{client: client, rule: rule, prefix: prefix, now: time.Now}
}

// Allow implements Limiter.
func (w *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	if !w.rule.enabled() {
		return Decision{Allowed: true}, nil
	}
	now := w.now().UnixMilli()
	reply, err := slidingWindowScript.Run(ctx, w.client,
		[]string{w.prefix + key},
		now, w.rule.Window.Milliseconds(), w.rule.Limit, uuid.NewString(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("sliding window script: %w", err)
	}
	return decisionFromReply(reply, w.rule)
}

func decisionFromReply(reply []interface{}, rule Rule) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("sliding window script: unexpected reply length %d", len(reply))
	}
	vals := make([]int64, 3)
	for i, raw := range reply {
		v, ok := raw.(int64)
		if !ok {
			return Decision{}, fmt.Errorf("sliding window script: reply[%d] is %T", i, raw)
		}
		vals[i] = v
	}
	if vals[0] == 1 {
		return Decision{Allowed: true, Remaining: rule.Limit - int(vals[1])}, nil
	}
	retry := time.Duration(vals[2]) * time.Millisecond
	if retry <= 0 {
		retry = time.Second
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}

var _ Limiter = (*RedisWindow)(nil)
