package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"goldenminutes/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Redis     *redis.Client // nil keeps the window in process memory
	Requests  int
	Window    time.Duration
	KeyPrefix string
}

// RateLimiter caps requests per caller, keyed by user id or client IP.
type RateLimiter struct {
	config RateLimitConfig
	local  *utils.KeyedRateLimiter
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}
	if config.Requests <= 0 {
		config.Requests = 5
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{
		config: config,
		local:  utils.NewKeyedRateLimiter(config.Requests, config.Window),
	}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.getKey(c)

		allowed, remaining := rl.allow(c.Request.Context(), key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(rl.config.Window.Seconds())))
			logrus.WithFields(logrus.Fields{
				"key":        key,
				"request_id": c.GetString("request_id"),
			}).Warn("Rate limit exceeded")
			utils.RateLimitResponse(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// allow falls back to the in-process window when Redis is unavailable.
func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, int) {
	if rl.config.Redis == nil {
		return rl.local.Allow(key)
	}

	allowed, remaining, err := rl.checkRedis(ctx, key)
	if err != nil {
		logrus.Errorf("Rate limit check failed, using local window: %v", err)
		return rl.local.Allow(key)
	}
	return allowed, remaining
}

// checkRedis is a sliding window log over a sorted set.
func (rl *RateLimiter) checkRedis(ctx context.Context, key string) (bool, int, error) {
	now := time.Now()
	member := fmt.Sprintf("%d", now.UnixNano())

	pipe := rl.config.Redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now.Add(-rl.config.Window).UnixNano()))
	count := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, rl.config.Window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	current := int(count.Val())
	if current >= rl.config.Requests {
		rl.config.Redis.ZRem(ctx, key, member)
		return false, 0, nil
	}
	return true, rl.config.Requests - current - 1, nil
}

func (rl *RateLimiter) getKey(c *gin.Context) string {
	if userID := utils.GetUserID(c); userID != "" {
		return fmt.Sprintf("%s:user:%s", rl.config.KeyPrefix, userID)
	}
	return fmt.Sprintf("%s:ip:%s", rl.config.KeyPrefix, c.ClientIP())
}

// SOSRateLimit limits how often one caller may trigger an SOS.
func SOSRateLimit(redisClient *redis.Client, requests int, window time.Duration) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Redis:     redisClient,
		Requests:  requests,
		Window:    window,
		KeyPrefix: "rate_limit:sos",
	}).Middleware()
}
