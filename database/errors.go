package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/diarkit/errors"
)

// IsNotFoundError checks if the error is a gorm record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsBusyError reports sqlite lock contention, which clears on retry.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "database is locked") || strings.Contains(s, "database table is locked") || strings.Contains(s, "sqlite_busy")
}

// FromDatabase converts a database error to an AppError.
func FromDatabase(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	if IsNotFoundError(err) {
		return apperrors.NotFound(resource, id)
	}
	appErr := apperrors.DatabaseError(err)
	if !IsBusyError(err) {
		appErr.Retryable = false
	}
	return appErr
}
