// Package errors provides structured error types for the offline queue.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeUnavailable       ErrorCode = "UNAVAILABLE"
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
	ErrCodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
)

// Operation represents the type of queue operation
type Operation string

const (
	OpCreate Operation = "create"
	OpJoin   Operation = "join"
	OpLeave  Operation = "leave"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpLoad   Operation = "load"
	OpSave   Operation = "save"
	OpPrune  Operation = "prune"
	OpReset  Operation = "reset"
	OpSync   Operation = "sync"
	OpProbe  Operation = "probe"
	OpNotify Operation = "notify"
)

// QueueError represents an error that occurred in the offline queue
type QueueError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "log", "executor")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried (transient vs terminal)
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *QueueError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

// NewTransient creates a retryable network-class QueueError
func NewTransient(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeNetworkFailure,
		Op:        op,
		Component: "executor",
		Err:       cause,
		Retryable: true,
	}
}

// NewTimeout creates a retryable timeout QueueError
func NewTimeout(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeTimeout,
		Op:        op,
		Component: "executor",
		Err:       cause,
		Retryable: true,
	}
}

// NewUnavailable creates a retryable backend-unavailable QueueError
func NewUnavailable(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeUnavailable,
		Op:        op,
		Component: "executor",
		Err:       cause,
		Retryable: true,
	}
}

// NewStorageError creates a storage-related QueueError. Storage errors are
// swallowed by the action log, so Retryable is informational only.
func NewStorageError(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeStorageFailure,
		Op:        op,
		Component: "log",
		Err:       cause,
		Retryable: true,
	}
}

// NewValidationError creates a terminal validation QueueError
func NewValidationError(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeValidationFailure,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// NewPermissionError creates a terminal authorization QueueError
func NewPermissionError(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodePermissionDenied,
		Op:        op,
		Component: "executor",
		Err:       cause,
		Retryable: false,
	}
}

// NewNotFoundError creates a terminal not-found QueueError
func NewNotFoundError(op Operation, cause error) *QueueError {
	return &QueueError{
		Code:      ErrCodeNotFound,
		Op:        op,
		Component: "executor",
		Err:       cause,
		Retryable: false,
	}
}

// New creates a new QueueError
func New(op Operation, err error) *QueueError {
	return &QueueError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new QueueError with component information
func NewWithComponent(op Operation, component string, err error) *QueueError {
	return &QueueError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// IsRetryable reports whether an error is a transient, retryable failure.
// Unclassified errors fall back to the message-based heuristic.
func IsRetryable(err error) bool {
	var qe *QueueError
	if errors.As(err, &qe) {
		return qe.Retryable
	}
	return classifyTransient(err)
}

// IsNotFound reports whether an error carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	var qe *QueueError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeNotFound
	}
	return false
}

// IsStorage reports whether an error carries the STORAGE_FAILURE code.
func IsStorage(err error) bool {
	var qe *QueueError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeStorageFailure
	}
	return false
}

// Classify wraps an arbitrary executor error into a QueueError with the
// appropriate code. Network-class failures (unreachable, timeout, backend
// unavailable) become retryable; everything else is terminal.
func Classify(op Operation, err error) *QueueError {
	if err == nil {
		return nil
	}

	var qe *QueueError
	if errors.As(err, &qe) {
		return qe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewTimeout(op, err)
		}
		return NewTransient(op, err)
	}

	if classifyTransient(err) {
		return NewUnavailable(op, err)
	}

	return &QueueError{
		Op:        op,
		Component: "executor",
		Err:       err,
		Retryable: false,
	}
}

func classifyTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unavailable", "network", "timeout", "connection refused", "connection reset", "no such host"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
