package middleware

import (
	"net/http"
	"strconv"
	"time"

	"study-assistant-platform/internal/logger"
	"study-assistant-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// windowScript increments the counter and starts its window in one step. A
// key found without a TTL gets one, so a counter can never outlive its window.
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RateLimitMiddleware counts requests per caller and route in fixed Redis
// windows. Authenticated callers are keyed by user id, others by IP. When
// Redis is unavailable requests are let through.
func RateLimitMiddleware(rdb redis.Scripter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		caller := GetUserID(c)
		if caller == "" {
			caller = "ip:" + c.ClientIP()
		}
		key := "ratelimit:" + caller + ":" + c.FullPath()

		ctx := c.Request.Context()
		count, err := windowScript.Run(ctx, rdb, []string{key}, window.Milliseconds()).Int64()
		if err != nil {
			logger.Warn("Rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if count > int64(limit) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))
			utils.RespondWithError(c, http.StatusTooManyRequests,
				"rate_limit_exceeded",
				"Too many requests. Please try again later.",
				gin.H{
					"retry_after": int(window.Seconds()),
					"limit":       limit,
				})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}
