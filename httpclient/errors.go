package httpclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kbukum/diarkit/errors"
)

const maxErrorBody = 512

// classifyStatus maps a non-2xx response to an AppError. Retryable codes
// (SERVICE_UNAVAILABLE, EXTERNAL_SERVICE_ERROR) are retried by the client.
func classifyStatus(service string, status int, body []byte) *errors.AppError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	var appErr *errors.AppError
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		appErr = errors.ServiceUnavailable(service)
	case status >= 500:
		appErr = errors.ExternalServiceError(service, fmt.Errorf("HTTP %d", status))
	case status == http.StatusNotFound:
		appErr = errors.NotFound(service+" endpoint", "")
	default:
		appErr = errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s rejected the request (HTTP %d)", service, status), http.StatusBadGateway)
	}
	return appErr.WithDetail("status", status).WithDetail("body", string(body))
}

// classifyTransport maps a failed round trip to an AppError.
func classifyTransport(service string, err error) *errors.AppError {
	if stderrors.Is(err, context.Canceled) {
		return errors.New(errors.ErrCodeInternal, service+" call canceled", http.StatusInternalServerError).WithCause(err)
	}
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Timeout(service).WithCause(err)
	}
	return errors.ServiceUnavailable(service).WithCause(err)
}
