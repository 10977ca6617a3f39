// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func allCodes() []ErrorCode {
	return []ErrorCode{
		ErrInternal, ErrInvalid, ErrNotFound, ErrValidation,
		ErrDatabase, ErrMigration, ErrStorage, ErrQueuePersist, ErrQueueCorrupt,
		ErrActionMissing, ErrUnknownAction,
		ErrSyncFailed, ErrSyncTimeout,
		ErrRemoteUnavailable, ErrRemoteRejected,
		ErrSessionUnavailable,
		ErrCartEmpty, ErrInvalidLineItem,
		ErrConfigInvalid,
	}
}

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrInternal, Message: "something failed"},
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrQueuePersist, Message: "enqueue failed", Err: errors.New("disk full")},
			want:     "[QUEUE_PERSIST_FAILED] enqueue failed: disk full",
		},
		{
			name:     "cart empty",
			appError: &AppError{Code: ErrCartEmpty, Message: "no lines"},
			want:     "[CART_EMPTY] no lines",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appError.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestAppError_Unwrap verifies unwrapping of underlying error.
func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")

	err := Wrap(ErrStorage, "write failed", underlying)
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find the wrapped error")
	}

	if New(ErrInternal, "failed").Unwrap() != nil {
		t.Error("Unwrap() without cause should be nil")
	}
}

// TestIs verifies error code checking through wrapping layers.
func TestIs(t *testing.T) {
	rejected := Wrap(ErrRemoteRejected, "insert header", errors.New("check violation"))

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching AppError", New(ErrNotFound, "not found"), ErrNotFound, true},
		{"non-matching AppError", New(ErrNotFound, "not found"), ErrInternal, false},
		{"non-AppError", errors.New("standard error"), ErrInternal, false},
		{"nil error", nil, ErrInternal, false},
		{"fmt wrapped", fmt.Errorf("apply action: %w", rejected), ErrRemoteRejected, true},
		{"nested AppError", Wrap(ErrSyncFailed, "pass", rejected), ErrRemoteRejected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("wrap: %w", New(ErrCartEmpty, "x"))); got != ErrCartEmpty {
		t.Errorf("CodeOf() = %q, want %q", got, ErrCartEmpty)
	}
	if got := CodeOf(errors.New("plain")); got != ErrInternal {
		t.Errorf("CodeOf(plain) = %q, want %q", got, ErrInternal)
	}
}

func TestIsPermanent(t *testing.T) {
	if !IsPermanent(Wrap(ErrRemoteRejected, "bad row", nil)) {
		t.Error("remote rejection should be permanent")
	}
	if !IsPermanent(New(ErrUnknownAction, "no handler")) {
		t.Error("unknown action should be permanent")
	}
	if IsPermanent(Wrap(ErrRemoteUnavailable, "dial", errors.New("timeout"))) {
		t.Error("connectivity failure should be transient")
	}
	if IsPermanent(errors.New("boom")) {
		t.Error("unclassified errors should be transient")
	}
}

// TestErrorCodes_areUnique verifies all error codes are unique.
func TestErrorCodes_areUnique(t *testing.T) {
	seen := make(map[ErrorCode]bool)
	for _, code := range allCodes() {
		if seen[code] {
			t.Errorf("ErrorCode %q is duplicated", code)
		}
		seen[code] = true
	}
}

// TestErrorCode_prefix verifies error codes follow naming convention.
func TestErrorCode_prefix(t *testing.T) {
	for _, code := range allCodes() {
		str := string(code)
		if str == "" || str != strings.ToUpper(str) {
			t.Errorf("ErrorCode %q should be non-empty uppercase", str)
		}
	}
}
