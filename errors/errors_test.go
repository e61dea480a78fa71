package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "dial tcp: connection refused" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestQueueErrorMessage(t *testing.T) {
	err := NewTransient(OpJoin, errors.New("dial tcp: i/o timeout"))

	want := "join operation failed in executor component [NETWORK_FAILURE]: dial tcp: i/o timeout"
	if err.Error() != want {
		t.Errorf("unexpected message:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestQueueErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError(OpSave, cause)

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", NewTransient(OpJoin, errors.New("x")), true},
		{"timeout", NewTimeout(OpSync, errors.New("x")), true},
		{"unavailable", NewUnavailable(OpCreate, errors.New("x")), true},
		{"permission", NewPermissionError(OpDelete, errors.New("x")), false},
		{"validation", NewValidationError(OpCreate, errors.New("x")), false},
		{"not found", NewNotFoundError(OpUpdate, errors.New("x")), false},
		{"wrapped transient", fmt.Errorf("outer: %w", NewTransient(OpJoin, errors.New("x"))), true},
		{"plain unavailable message", errors.New("backend unavailable"), true},
		{"plain business error", errors.New("title is required"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		retryable bool
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout, true},
		{"net timeout", &fakeNetError{timeout: true}, ErrCodeTimeout, true},
		{"net refused", &fakeNetError{}, ErrCodeNetworkFailure, true},
		{"unavailable message", errors.New("firestore: service unavailable"), ErrCodeUnavailable, true},
		{"business rule", errors.New("event is full"), ErrorCode(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qe := Classify(OpJoin, tt.err)
			if qe.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", qe.Code, tt.wantCode)
			}
			if qe.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", qe.Retryable, tt.retryable)
			}
		})
	}
}

func TestClassifyPreservesExistingQueueError(t *testing.T) {
	orig := NewPermissionError(OpDelete, errors.New("denied"))
	got := Classify(OpDelete, fmt.Errorf("wrapped: %w", orig))
	if got != orig {
		t.Error("expected Classify to return the already-classified error")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NewNotFoundError(OpDelete, errors.New("missing"))) {
		t.Error("expected NOT_FOUND to be detected")
	}
	if IsNotFound(NewTransient(OpDelete, errors.New("x"))) {
		t.Error("transient error should not be NOT_FOUND")
	}
	if IsNotFound(nil) {
		t.Error("nil should not be NOT_FOUND")
	}
}
