// Package errors provides error code definitions shared by the POS core and
// the host application boundary (desktop REST API and mobile FFI).
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code that can be bridged to the host UI.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Local storage errors
	ErrDatabase      ErrorCode = "DATABASE_ERROR"
	ErrMigration     ErrorCode = "MIGRATION_FAILED"
	ErrStorage       ErrorCode = "STORAGE_FAILED"
	ErrQueuePersist  ErrorCode = "QUEUE_PERSIST_FAILED"
	ErrQueueCorrupt  ErrorCode = "QUEUE_CORRUPTED"
	ErrActionMissing ErrorCode = "ACTION_NOT_FOUND"
	ErrUnknownAction ErrorCode = "UNKNOWN_ACTION"
	ErrRegisterBusy  ErrorCode = "REGISTER_BUSY"

	// Sync errors
	ErrSyncFailed  ErrorCode = "SYNC_FAILED"
	ErrSyncTimeout ErrorCode = "SYNC_TIMEOUT"

	// Remote errors
	ErrRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrRemoteRejected    ErrorCode = "REMOTE_REJECTED"

	// Session errors
	ErrSessionUnavailable ErrorCode = "SESSION_UNAVAILABLE"

	// Checkout errors
	ErrCartEmpty       ErrorCode = "CART_EMPTY"
	ErrInvalidLineItem ErrorCode = "INVALID_LINE_ITEM"

	// Configuration errors
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"
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

// Is reports whether any AppError in err's chain carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsPermanent reports whether err is a rejection that will not succeed on
// retry. Connectivity problems and unknown failures are transient.
func IsPermanent(err error) bool {
	return Is(err, ErrRemoteRejected) || Is(err, ErrUnknownAction)
}
