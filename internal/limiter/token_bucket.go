// Package limiter 令牌桶限流器实现
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scriptRunner 令牌桶只需要 EVAL 与 DEL，*redis.Client 与集群客户端都满足
type scriptRunner interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// TokenBucketLimiter 令牌桶限流器
type TokenBucketLimiter struct {
	client    scriptRunner
	config    *Config
	keyPrefix string
	now       func() time.Time
}

// NewTokenBucketLimiter 创建令牌桶限流器
func NewTokenBucketLimiter(client scriptRunner, config *Config) (*TokenBucketLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "limiter:tb"
	}

	return &TokenBucketLimiter{
		client:    client,
		config:    config,
		keyPrefix: config.KeyPrefix,
		now:       time.Now,
	}, nil
}

// Redis Lua脚本：令牌桶算法，时间单位为毫秒
// 只把已折算成整令牌的时间计入 last_refill，不足一个令牌的时间留到下次
const tokenBucketScript = `
-- KEYS[1]: 令牌桶key
-- ARGV[1]: 容量(burst)
-- ARGV[2]: 补充速率(rate)
-- ARGV[3]: 时间窗口(毫秒)
-- ARGV[4]: 请求令牌数
-- ARGV[5]: 当前时间戳(毫秒)

local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local tokens_requested = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local elapsed = math.max(0, now - last_refill)
local tokens_to_add = math.floor(elapsed * rate / window)
if tokens_to_add > 0 then
    tokens = math.min(capacity, tokens + tokens_to_add)
    last_refill = last_refill + math.floor(tokens_to_add * window / rate)
end
if tokens >= capacity then
    last_refill = now
end

local allowed = 0
local retry_after = 0
if tokens >= tokens_requested then
    tokens = tokens - tokens_requested
    allowed = 1
else
    local tokens_needed = tokens_requested - tokens
    retry_after = math.ceil(tokens_needed * window / rate) - (now - last_refill)
    if retry_after < 1 then
        retry_after = 1
    end
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', last_refill)
redis.call('PEXPIRE', key, window * 2)

return {allowed, tokens, retry_after}
`

// getKey 生成Redis key
func (tb *TokenBucketLimiter) getKey(key string) string {
	return fmt.Sprintf("%s:%s", tb.keyPrefix, key)
}

// Allow 检查是否允许请求通过
func (tb *TokenBucketLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return tb.AllowN(ctx, key, 1)
}

// AllowN 检查是否允许N个请求通过
func (tb *TokenBucketLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	if n <= 0 {
		return nil, fmt.Errorf("token count must be positive, got %d", n)
	}

	result := tb.client.Eval(ctx, tokenBucketScript,
		[]string{tb.getKey(key)},
		tb.config.Burst,                 // 容量
		tb.config.Rate,                  // 速率
		tb.config.Window.Milliseconds(), // 时间窗口
		n,                               // 请求令牌数
		tb.now().UnixMilli(),            // 当前时间
	)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to execute token bucket script: %w", err)
	}

	values, err := result.Int64Slice()
	if err != nil || len(values) != 3 {
		return nil, fmt.Errorf("unexpected token bucket script result: %v", result.Val())
	}

	return &LimitResult{
		Allowed:    values[0] == 1,
		Remaining:  values[1],
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
	}, nil
}

// Reset 重置令牌桶
func (tb *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	if err := tb.client.Del(ctx, tb.getKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset token bucket: %w", err)
	}
	return nil
}
