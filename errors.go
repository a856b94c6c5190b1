package pickup

import (
	"errors"
	"fmt"
)

// Error represents a pickup library error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for pickup operations.
const (
	// ErrCodeNotFound indicates the requested record does not exist.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeStorageUnavailable indicates the record store failed.
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"

	// ErrCodePreconditionFailed indicates the inbound connection is not ready.
	ErrCodePreconditionFailed = "PRECONDITION_FAILED"

	// ErrCodeNotificationFailed indicates a stored-message notification could not be queued or sent.
	ErrCodeNotificationFailed = "NOTIFICATION_FAILED"

	// ErrCodeValidation indicates validation failed.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeUnsupportedMessage indicates a message type the dispatcher has no handler for.
	ErrCodeUnsupportedMessage = "UNSUPPORTED_MESSAGE"

	// ErrCodeDelivery indicates an outbound message could not be sent.
	ErrCodeDelivery = "DELIVERY_ERROR"
)

// Common errors.
var (
	// ErrNotFound is returned when a record lookup finds nothing.
	ErrNotFound = &Error{
		Code:    ErrCodeNotFound,
		Message: "record not found",
	}

	// ErrConnectionNotReady is returned by the dispatcher when the inbound
	// message did not arrive over an established connection.
	ErrConnectionNotReady = &Error{
		Code:    ErrCodePreconditionFailed,
		Message: "connection not ready",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// ErrorCode returns the code of the first *Error in err's chain, or "".
func ErrorCode(err error) string {
	var pickupErr *Error
	if errors.As(err, &pickupErr) {
		return pickupErr.Code
	}
	return ""
}

// IsNotFound checks if an error is ErrNotFound.
func IsNotFound(err error) bool {
	return ErrorCode(err) == ErrCodeNotFound
}

// IsStorageUnavailable checks if an error came from a failing record store.
func IsStorageUnavailable(err error) bool {
	return ErrorCode(err) == ErrCodeStorageUnavailable
}

// IsPreconditionFailed checks if an error is a dispatch precondition failure.
func IsPreconditionFailed(err error) bool {
	return ErrorCode(err) == ErrCodePreconditionFailed
}

// IsValidation checks if an error is a validation failure.
func IsValidation(err error) bool {
	return ErrorCode(err) == ErrCodeValidation
}
