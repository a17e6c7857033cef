package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/ratelimit"
	"github.com/GriffinCanCode/QuakeAlert/backend/internal/shared/apperror"
)

// MessageRateLimited is returned with every 429
const MessageRateLimited = "Too many requests, please try again later"

// RateLimit enforces a fixed-window rule per client address. Each policy
// counts separately, so a client's reads do not use up its write allowance.
func RateLimit(limiter *ratelimit.Limiter, policy string, rule ratelimit.Rule, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := limiter.Check(policy+":"+c.ClientIP(), rule)

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			metrics.RecordRateLimited(policy)
			c.Header("Retry-After", strconv.Itoa(d.RetryAfter))
			_ = c.Error(apperror.RateLimited(MessageRateLimited, d.RetryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}

// GlobalRateLimit is a process-wide token bucket in front of every route. It
// runs before the per-route chain, so it writes its own envelope.
func GlobalRateLimit(rps, burst int, metrics *monitoring.Metrics) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			metrics.RecordRateLimited("global")
			c.Header("Retry-After", "1")
			abortWithError(c, apperror.RateLimited(MessageRateLimited, 1))
			return
		}
		c.Next()
	}
}

// abortWithError writes the failure envelope for err and stops the chain
func abortWithError(c *gin.Context, err *apperror.Error) {
	c.AbortWithStatusJSON(err.Status(), err.Response())
}
