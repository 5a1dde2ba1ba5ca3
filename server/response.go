package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/logger"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries pagination metadata.
type Meta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// RespondWithError writes err as an ErrorResponse. AppErrors keep their
// status; anything else becomes a 500 without leaking the cause.
func RespondWithError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondOKWithMeta sends a 200 response with data and metadata.
func RespondOKWithMeta(c *gin.Context, data any, meta *Meta) {
	c.JSON(http.StatusOK, DataResponse{Data: data, Meta: meta})
}

// RespondCreated sends a 201 response wrapping data.
func RespondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, DataResponse{Data: data})
}

func errNoRoute(c *gin.Context) error {
	return apperrors.NotFound("route", c.Request.URL.Path)
}

func errNoMethod(c *gin.Context) error {
	return apperrors.New(apperrors.ErrCodeInvalidInput,
		fmt.Sprintf("method %s not allowed on %s", c.Request.Method, c.Request.URL.Path),
		http.StatusMethodNotAllowed)
}

// requestLogger returns log bound to the request's ids.
func requestLogger(c *gin.Context, log *logger.Logger) *logger.Logger {
	return log.WithContext(c.Request.Context())
}
