package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"vidsum-ai-api/internal/interfaces/http/dto"
	"vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerSecond 每个客户端每个路由每秒请求数
	RequestsPerSecond int
	// Burst 额外的突发容量
	Burst int
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc 由客户端标识与路由生成限流键
type KeyFunc func(subject, endpoint string) string

// RateLimit 按客户端 IP 与路由限流；限流器故障时放行
func RateLimit(cfg RateLimitConfig, limiter RateLimiter, keyFn KeyFunc) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	limit := cfg.RequestsPerSecond + max(cfg.Burst, 0)

	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		key := keyFn(c.ClientIP(), endpoint)

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, time.Second)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			dto.Fail(c, errors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
