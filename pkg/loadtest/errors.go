package loadtest

import (
	"errors"
	"fmt"
)

// ErrorCode allows us to encapsulate specific failure codes for the load
// testing process. They double as process exit codes.
type ErrorCode int

// Error/exit codes for load testing-related errors.
const (
	NoError ErrorCode = iota
	ErrFailedToDecodeConfig
	ErrFailedToReadConfigFile
	ErrInvalidConfig
	ErrFailedToCreateTransport
	ErrFailedToCreateWorker
	ErrRoundFailed
	ErrMetricsServerFailed
	ErrKilled
)

// Error is a way of wrapping the meaningful exit code we want to provide on
// failure.
type Error struct {
	Code     ErrorCode
	Message  string
	Upstream error
}

var _ error = (*Error)(nil)

// NewError allows us to create new Error structures from the given code and
// upstream error (can be nil).
func NewError(code ErrorCode, upstream error, additionalInfo ...string) *Error {
	return &Error{
		Code:     code,
		Message:  ErrorMessageForCode(code, additionalInfo...),
		Upstream: upstream,
	}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Upstream != nil {
		return fmt.Sprintf("%s. Caused by: %s", e.Message, e.Upstream.Error())
	}
	return e.Message
}

// Unwrap exposes the upstream error to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Upstream
}

// ErrorMessageForCode translates the given error code into a human-readable,
// English message.
func ErrorMessageForCode(code ErrorCode, additionalInfo ...string) string {
	var result string
	switch code {
	case NoError:
		result = "No error"
	case ErrFailedToDecodeConfig:
		result = "Failed to decode YAML configuration"
	case ErrFailedToReadConfigFile:
		result = "Failed to read configuration file"
	case ErrInvalidConfig:
		result = "Invalid configuration"
	case ErrFailedToCreateTransport:
		result = "Failed to create transport"
	case ErrFailedToCreateWorker:
		result = "Failed to create worker"
	case ErrRoundFailed:
		result = "Round failed"
	case ErrMetricsServerFailed:
		result = "Metrics server failed"
	case ErrKilled:
		result = "Process killed"
	default:
		return "Unrecognized error"
	}
	if len(additionalInfo) > 0 {
		result = fmt.Sprintf("%s: %s", result, additionalInfo[0])
	}
	return result
}

// IsErrorCode reports whether err is, or wraps, an Error with the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ExitCode returns the process exit code for the given error.
func ExitCode(err error) int {
	if err == nil {
		return int(NoError)
	}
	var e *Error
	if errors.As(err, &e) {
		return int(e.Code)
	}
	return 1
}
