// Package errors provides the structured error type shared by every diarkit
// package: a machine-readable code, an HTTP status for the API layer and a
// retryable flag that sidecar clients consult before backing off.
package errors
