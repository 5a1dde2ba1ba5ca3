package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/observability"
)

// RequestLogger logs every request with method, route, status and duration
// and records the request metrics. Health and version probes are not logged
// but still counted.
func RequestLogger(log *logger.Logger, metrics *observability.PipelineMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordRequest(c.Request.Context(), route, c.Request.Method, status, duration)

		if isProbe(route) {
			return
		}
		fields := logger.Fields(
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"size", c.Writer.Size(),
			logger.FieldDuration, duration.Milliseconds(),
		)
		if len(c.Errors) > 0 {
			fields[logger.FieldError] = c.Errors.String()
		}
		logByStatus(log.WithContext(c.Request.Context()), fields, status)
	}
}

func isProbe(route string) bool {
	return route == "/health" || route == "/version"
}

func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("request completed", fields)
	case status >= 400:
		log.Warn("request completed", fields)
	default:
		log.Info("request completed", fields)
	}
}
