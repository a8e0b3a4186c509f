package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig configures the send limiter
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyPrefix         string
	Message           string
}

// DefaultRateLimitConfig returns the message-send limits
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
		KeyPrefix:         "messenger:ratelimit:",
		Message:           "메시지를 너무 빠르게 보내고 있습니다. 잠시 후 다시 시도해주세요.",
	}
}

// sliding window over a sorted set; returns {allowed, remaining, reset_at_ms}
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, math.ceil(window / 1000) + 1)
    return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset_at = 0
if #oldest >= 2 then
    reset_at = tonumber(oldest[2]) + window
end
return {0, 0, reset_at}
`)

// RateLimitPerUser limits requests per company and user. Without redis, or
// when redis errors, requests pass through.
func RateLimitPerUser(redisClient *redis.Client, cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || cfg.RequestsPerMinute <= 0 {
			c.Next()
			return
		}

		subject := GetUserID(c)
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}
		key := cfg.KeyPrefix + GetScope(c).CompanyID + ":" + subject

		now := time.Now().UnixMilli()
		windowMs := int64(60 * 1000)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		result, err := rateLimitScript.Run(ctx, redisClient, []string{key},
			cfg.RequestsPerMinute, windowMs, now,
		).Int64Slice()
		cancel()
		if err != nil || len(result) != 3 {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result[1]))

		if result[0] != 1 {
			retryAfter := (result[2] - now) / 1000
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			common.ErrorResponse(c, http.StatusTooManyRequests, cfg.Message, nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
