package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/diarkit/version"
)

// Version reports build information.
func Version() gin.HandlerFunc {
	info := version.Get()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, info)
	}
}
