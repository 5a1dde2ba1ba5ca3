// Package endpoint holds the operational endpoints every diarkit server exposes.
package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/diarkit/observability"
)

// Health reports service health aggregated over checkers. A down component
// turns the response into a 503.
func Health(service, version string, checkers ...observability.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.Check(c.Request.Context(), service, version, checkers...)
		status := http.StatusOK
		if sh.Status == observability.HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, sh)
	}
}
