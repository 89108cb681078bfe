package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-callverify/core"
)

const (
	MetricHTTPRequests   = "callverify.http.requests"
	MetricHTTPDurationMS = "callverify.http.duration_ms"
)

func RequestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := "info"
		if status >= 500 {
			level = "error"
		} else if status >= 400 {
			level = "warn"
		}
		core.LogWithFields(c.Request.Context(), logger, level, "http request", map[string]any{
			"method":      c.Request.Method,
			"path":        routePath(c),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"bytes":       c.Writer.Size(),
		})
	}
}

func RequestMetrics(metrics core.MetricsRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		tags := map[string]string{
			"method": c.Request.Method,
			"path":   routePath(c),
			"status": strconv.Itoa(c.Writer.Status()),
		}
		metrics.IncCounter(c.Request.Context(), MetricHTTPRequests, 1, tags)
		metrics.ObserveHistogram(c.Request.Context(), MetricHTTPDurationMS, float64(time.Since(start).Milliseconds()), map[string]string{
			"method": tags["method"],
			"path":   tags["path"],
		})
	}
}

// routePath prefers the route template so ids do not explode label cardinality.
func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return "unmatched"
}
