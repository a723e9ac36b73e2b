package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Path and filesystem errors
	ErrPathNotFound ErrorCode = "PATH_NOT_FOUND"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
	ErrFileCreate   ErrorCode = "FILE_CREATE"
	ErrFileWrite    ErrorCode = "FILE_WRITE"
	ErrDirCreate    ErrorCode = "DIR_CREATE"

	// External process errors
	ErrProcessFailure  ErrorCode = "PROCESS_FAILURE"
	ErrProcessTimeout  ErrorCode = "PROCESS_TIMEOUT"
	ErrDuplicate       ErrorCode = "DUPLICATE"
	ErrMalformedOutput ErrorCode = "MALFORMED_OUTPUT"

	// Configuration errors
	ErrConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrConfigParse   ErrorCode = "CONFIG_PARSE"
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Kindle installation errors
	ErrKindleNotFound ErrorCode = "KINDLE_NOT_FOUND"
	ErrKindleConflict ErrorCode = "KINDLE_CONFLICT"

	// Library errors
	ErrLibraryInvalid ErrorCode = "LIBRARY_INVALID"
	ErrLibraryQuery   ErrorCode = "LIBRARY_QUERY"

	// Key state errors
	ErrKeyMerge ErrorCode = "KEY_MERGE"
)

// KeyfinderError represents a structured error with code and details
type KeyfinderError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *KeyfinderError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *KeyfinderError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *KeyfinderError) Is(target error) bool {
	var targetErr *KeyfinderError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new KeyfinderError with the given code and message
func New(code ErrorCode, message string) *KeyfinderError {
	return &KeyfinderError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new KeyfinderError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *KeyfinderError {
	return &KeyfinderError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a KeyfinderError
func Wrap(err error, code ErrorCode, message string) *KeyfinderError {
	if err == nil {
		return nil
	}
	return &KeyfinderError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *KeyfinderError {
	if err == nil {
		return nil
	}
	return &KeyfinderError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *KeyfinderError) WithDetail(key string, value interface{}) *KeyfinderError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsCode checks whether err carries the given error code
func IsCode(err error, code ErrorCode) bool {
	var kerr *KeyfinderError
	if errors.As(err, &kerr) {
		return kerr.Code == code
	}
	return false
}
