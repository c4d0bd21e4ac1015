// Package errors provides error code definitions for the Bookyo client core.
//
// Failures are classified at the point of origin: the remote-call layer tags
// each error as network, remote, validation or unknown when it happens, so no
// caller ever has to infer the failure class from message text.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique, stable error code.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrUnknown    ErrorCode = "UNKNOWN_ERROR"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Failure classes used by the submit/retry paths
	ErrNetwork ErrorCode = "NETWORK_ERROR"
	ErrRemote  ErrorCode = "REMOTE_ERROR"
	ErrStorage ErrorCode = "STORAGE_ERROR"

	// Auth errors
	ErrAuthSignedOut     ErrorCode = "AUTH_SIGNED_OUT"
	ErrAuthFailed        ErrorCode = "AUTH_FAILED"
	ErrAuthCodeMismatch  ErrorCode = "AUTH_CODE_MISMATCH"
	ErrAuthNotConfirmed  ErrorCode = "AUTH_NOT_CONFIRMED"
	ErrAuthUserNotFound  ErrorCode = "AUTH_USER_NOT_FOUND"
	ErrAuthLimitExceeded ErrorCode = "AUTH_LIMIT_EXCEEDED"

	// Pending queue errors
	ErrQueueReadFailed  ErrorCode = "QUEUE_READ_FAILED"
	ErrQueueWriteFailed ErrorCode = "QUEUE_WRITE_FAILED"
	ErrImageCacheFailed ErrorCode = "IMAGE_CACHE_FAILED"

	// Object storage errors
	ErrUploadFailed   ErrorCode = "UPLOAD_FAILED"
	ErrDownloadFailed ErrorCode = "DOWNLOAD_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}

// Code extracts the error code from an error chain.
// Errors without an AppError in the chain report ErrUnknown.
func Code(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrUnknown
}

// IsNetwork reports whether the error was classified as a connectivity
// failure. Network-class failures are retryable and route to the offline
// queue instead of surfacing as terminal errors.
func IsNetwork(err error) bool {
	return Code(err) == ErrNetwork
}
