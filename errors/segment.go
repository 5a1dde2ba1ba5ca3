package errors

import (
	"fmt"
	"net/http"
)

// MalformedSegment reports one rejected input record. kind is "turn" or
// "unit", index its position in the backend payload.
func MalformedSegment(kind string, index int, reason string) *AppError {
	return &AppError{
		Code:       ErrCodeMalformedSegment,
		Message:    fmt.Sprintf("malformed %s at index %d: %s", kind, index, reason),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"kind": kind, "index": index, "reason": reason},
	}
}

// EmptyInput is returned when normalization leaves no turns and no units.
func EmptyInput() *AppError {
	return &AppError{
		Code:       ErrCodeEmptyInput,
		Message:    "no diarization turns or transcript units survived normalization",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// InvalidMapping rejects a whole speaker mapping. keys lists every offending raw id.
func InvalidMapping(keys []string, reason string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidMapping,
		Message:    fmt.Sprintf("invalid speaker mapping: %s", reason),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"keys": keys},
	}
}

// ExportFormat reports a cue that could not be rendered as-is.
func ExportFormat(format string, cue int, reason string) *AppError {
	return &AppError{
		Code:       ErrCodeExportFormat,
		Message:    fmt.Sprintf("%s cue %d: %s", format, cue, reason),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"format": format, "cue": cue},
	}
}

// UnsupportedFormat names an adapter or export format that is not registered.
func UnsupportedFormat(kind, name string) *AppError {
	return &AppError{
		Code:       ErrCodeUnsupportedFormat,
		Message:    fmt.Sprintf("unsupported %s %q", kind, name),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"kind": kind, "name": name},
	}
}
