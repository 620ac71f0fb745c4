package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"medicare-backend/internal/ratelimit"
	"medicare-backend/internal/shared/metrics"
	"medicare-backend/internal/shared/telemetry"
)

// SlidingWindowConfig configures SlidingWindow.
type SlidingWindowConfig struct {
	Name    string
	Limiter ratelimit.Limiter
	Message string
}

// SlidingWindow rejects a principal's request with 429 once its rolling budget is spent.
// It runs before the handler, so rejected requests never reach the service.
// Limiter errors fail open.
func SlidingWindow(cfg SlidingWindowConfig) gin.HandlerFunc {
	if cfg.Name == "" {
		cfg.Name = "window"
	}
	if cfg.Message == "" {
		cfg.Message = "Too many requests, please try again later."
	}
	return func(c *gin.Context) {
		if cfg.Limiter == nil {
			c.Next()
			return
		}
		principal := strings.TrimSpace(UserIDFromContext(c))
		if principal == "" {
			principal = "ip:" + c.ClientIP()
		}

		decision, err := cfg.Limiter.Allow(c.Request.Context(), cfg.Name+"|"+principal)
		if err != nil {
			telemetry.Error("ratelimit.error", map[string]any{
				"request_id": RequestIDFromContext(c),
				"limiter":    cfg.Name,
				"error":      err.Error(),
			})
			c.Next()
			return
		}
		if decision.Allowed {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retryAfter <= 0 {
			retryAfter = 1
		}
		metrics.IncRateLimited(cfg.Name)
		telemetry.Info("ratelimit.rejected", map[string]any{
			"request_id":    RequestIDFromContext(c),
			"user_id":       principal,
			"limiter":       cfg.Name,
			"retry_after_s": retryAfter,
		})
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success":    false,
			"message":    cfg.Message,
			"retryAfter": retryAfter,
		})
	}
}
