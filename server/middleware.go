package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/metrics"
)

// actionHeaders sets the Actions protocol and CORS headers on every response
// of the action routes. Pre-flight requests end here with 204.
func actionHeaders(headers map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for k, v := range headers {
			c.Header(k, v)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// instrument records request count and latency per route
func instrument(rec metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.ObserveLatency(metrics.EventHTTPRequest, time.Since(start), map[string]string{"action": route})
		rec.IncCounter(metrics.EventHTTPRequest, map[string]string{
			"action": route,
			"status": strconv.Itoa(c.Writer.Status()),
		})
	}
}

// requestLogger replaces gin's default logger with the service logger
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"remoteAddr": c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request failed", fields)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request rejected", fields)
		default:
			log.Debug("request served", fields)
		}
	}
}
