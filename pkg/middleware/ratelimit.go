package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/onlinemall/pkg/config"
	"github.com/wyfcoding/onlinemall/pkg/ratelimit"
)

// RateLimitMiddleware 全局限流中间件。
// 已认证请求按用户维度计数，避免同一出口 IP 后的买家互相挤兑配额；
// 匿名请求退回客户端 IP 维度。限流器自身故障时放行，限流不能变成故障面。
func RateLimitMiddleware(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		key := rateLimitKey(c)
		limit := ratelimit.Limit{
			Rate:   cfg.QPS,
			Period: time.Second,
			Burst:  cfg.Burst,
		}

		res, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter/time.Second), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter/time.Second), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too Many Requests",
				"retry_after": res.RetryAfter.String(),
			})
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if userID := c.GetHeader("X-User-ID"); userID != "" {
		return fmt.Sprintf("ratelimit:user:%s", userID)
	}
	return fmt.Sprintf("ratelimit:ip:%s", c.ClientIP())
}
