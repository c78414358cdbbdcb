// Package middleware holds the handler chain wrapped around the local status
// server.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/userdash/pkg/logger"
	"github.com/charlesng35/userdash/pkg/metrics"
)

// RequestIDHeader carries the id echoed on every status response.
const RequestIDHeader = "X-Request-ID"

const unmatchedRoute = "unmatched"

// Options configures the status chain.
type Options struct {
	// Logger receives access and panic logs. Nil uses the "status" module logger.
	Logger *zap.Logger
	// QuietRoutes are polled routes whose successful requests are not logged.
	QuietRoutes []string
}

// Status returns the status server chain in the order it must be installed.
func Status(opts Options) []gin.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = logger.WithModule("status")
	}
	quiet := make(map[string]struct{}, len(opts.QuietRoutes))
	for _, route := range opts.QuietRoutes {
		quiet[route] = struct{}{}
	}

	return []gin.HandlerFunc{observe(log, quiet), recovery(log), noStore}
}

// observe tags the request with an id, then records latency and an access
// entry once the rest of the chain has run.
func observe(log *zap.Logger, quiet map[string]struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.StatusLatency.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

		if _, ok := quiet[route]; ok && status < http.StatusBadRequest {
			return
		}
		log.Debug("request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
		)
	}
}

// noStore keeps cache and screen snapshots out of intermediary caches.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Next()
}
