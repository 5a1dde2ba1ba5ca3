package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/diarkit/errors"
)

const defaultMaxBodySize = 32 * 1024 * 1024

// ParseSize parses a human-readable size ("10MB", "512KB", "1GB", "2048").
// An empty string yields the default.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return defaultMaxBodySize, nil
	}

	var multiplier int64 = 1
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			break
		}
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil || val <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return val * multiplier, nil
}

// BodySizeLimit caps the request body. Reads past the limit fail, which the
// JSON binding surfaces as a 400.
func BodySizeLimit(maxSize string) gin.HandlerFunc {
	size, err := ParseSize(maxSize)
	if err != nil {
		size = defaultMaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > size {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody(apperrors.ErrCodeInvalidInput,
				fmt.Sprintf("request body exceeds %d bytes", size)))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, size)
		c.Next()
	}
}
