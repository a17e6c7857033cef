package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests that did not match a registered route
const unmatchedRoute = "unmatched"

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		c.Next()

		// Route templates keep label cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		metrics.RecordHTTPRequest(method, route, strconv.Itoa(c.Writer.Status()), time.Since(start), reqSize, int64(c.Writer.Size()))
	}
}

// Timer measures a dependency call
type Timer struct {
	start      time.Time
	metrics    *Metrics
	dependency string
	operation  string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, dependency, operation string) *Timer {
	return &Timer{
		start:      time.Now(),
		metrics:    metrics,
		dependency: dependency,
		operation:  operation,
	}
}

// Stop records the duration with a status derived from err
func (t *Timer) Stop(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	t.metrics.RecordDependencyCall(t.dependency, t.operation, status, time.Since(t.start))
}
