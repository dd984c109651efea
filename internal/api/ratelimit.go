package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fenwick-labs/gatehouse/internal/utils"
)

// RateLimit caps requests per client IP and route inside a fixed window,
// counted in redis. The limiter fails open: a nil client or an unreachable
// redis lets the request through.
func RateLimit(client *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", c.FullPath(), c.ClientIP())

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			utils.Logger().Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count == 1 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				utils.Logger().Warn("rate limiter expire failed", zap.Error(err))
			}
		}

		if count > int64(limit) {
			respondError(c, http.StatusTooManyRequests, "too many requests; please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
