package middleware

import (
	"net/http"

	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/brightpath/brightpath-api/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiter applies a fixed-window policy per client key to a route group
type RateLimiter struct {
	limiter *ratelimit.Limiter
	policy  ratelimit.Policy
}

// NewRateLimiter creates a middleware limiter sharing limiter's store
func NewRateLimiter(limiter *ratelimit.Limiter, policy ratelimit.Policy) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		policy:  policy,
	}
}

// Middleware returns a Gin middleware function for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ClientKey(c)

		decision, err := rl.limiter.Check(c.Request.Context(), key, rl.policy)
		if err != nil {
			logger.LogError(c.Request.Context(), err, "Rate limit store unavailable, admitting request",
				zap.String("client_key", key),
				zap.String("policy", rl.policy.Name))
		}

		decision.WriteHeaders(c.Writer.Header())

		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   rl.policy.Message(),
			})
			return
		}

		c.Next()
	}
}
