package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Alignment pipeline errors
const (
	// ErrCodeMalformedSegment marks a single diarization turn or transcript
	// unit with missing, negative or non-finite timestamps. Recovered locally.
	ErrCodeMalformedSegment ErrorCode = "MALFORMED_SEGMENT"
	// ErrCodeEmptyInput means both canonical sequences were empty after normalization.
	ErrCodeEmptyInput ErrorCode = "EMPTY_INPUT"
	// ErrCodeInvalidMapping means a speaker mapping was rejected as a whole.
	ErrCodeInvalidMapping ErrorCode = "INVALID_MAPPING"
	// ErrCodeExportFormat marks output that could not be rendered faithfully.
	ErrCodeExportFormat ErrorCode = "EXPORT_FORMAT"
	// ErrCodeUnsupportedFormat names an unknown adapter or export format.
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
)

// Connection/Availability errors (retryable)
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Request errors
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
)

// Internal errors
const (
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeExternalService:    true,
	ErrCodeDatabaseError:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
