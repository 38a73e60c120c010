// Package exception provides custom error types and error handling utilities for the Climate Core.
// It standardizes errors raised during task execution so that the engine can
// archive and propagate them with full diagnostic context.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel errors shared across the Core.
var (
	// ErrNotImplemented signals an operation a data adapter variant does not support
	// (e.g., writing through a read-only adapter, station-to-station interpolation).
	ErrNotImplemented = errors.New("operation is not implemented")
	// ErrNotFound signals a failed metadata or file lookup.
	ErrNotFound = errors.New("not found")
	// ErrUnregistered signals a registry lookup for a key no factory was registered under.
	ErrUnregistered = errors.New("unregistered key")
)

// CoreError is a custom error type raised during task processing.
// It holds the module where the error occurred, a message and the wrapped original error.
type CoreError struct {
	// Module indicates the component where the error occurred (e.g., "engine", "mddb", "adapter").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error, if any.
	OriginalErr error
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewCoreError creates a new CoreError instance wrapping originalErr.
func NewCoreError(module, message string, originalErr error) *CoreError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &CoreError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// NewCoreErrorf creates a new CoreError with a formatted message and no wrapped error.
func NewCoreErrorf(module, format string, v ...interface{}) *CoreError {
	return NewCoreError(module, fmt.Sprintf(format, v...), nil)
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped original error, enabling errors.Is / errors.As traversal.
func (e *CoreError) Unwrap() error {
	return e.OriginalErr
}

// IsCoreError determines if the given error is of type CoreError.
func IsCoreError(err error) bool {
	if err == nil {
		return false
	}
	var ce *CoreError
	return errors.As(err, &ce)
}
