package errors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the feed engine
var (
	ErrValidation           = errors.New("validation failed")
	ErrAuthorization        = errors.New("not authorized")
	ErrTransient            = errors.New("transient network error")
	ErrConflict             = errors.New("conflict")
	ErrSubscriptionDegraded = errors.New("live updates paused")
	ErrNotFound             = errors.New("not found")
	ErrRateLimited          = errors.New("rate limited")
)

const (
	CodeValidation    = "validation"
	CodeAuthorization = "authorization"
	CodeTransient     = "transient"
	CodeConflict      = "conflict"
	CodeDegraded      = "subscription_degraded"
	CodeNotFound      = "not_found"
	CodeRateLimited   = "rate_limited"
)

var kinds = map[string]error{
	CodeValidation:    ErrValidation,
	CodeAuthorization: ErrAuthorization,
	CodeTransient:     ErrTransient,
	CodeConflict:      ErrConflict,
	CodeDegraded:      ErrSubscriptionDegraded,
	CodeNotFound:      ErrNotFound,
	CodeRateLimited:   ErrRateLimited,
}

// Error represents a custom error type
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel registered for the error code.
func (e *Error) Is(target error) bool {
	kind, ok := kinds[e.Code]
	return ok && kind == target
}

// New creates a new error with a message
func New(message string) error {
	return &Error{
		Message: message,
	}
}

// Wrap wraps an error with additional message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapWithCode wraps an error with a code and message
func WrapWithCode(err error, code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Validation(message string) error {
	return &Error{Code: CodeValidation, Message: message}
}

func Authorization(message string) error {
	return &Error{Code: CodeAuthorization, Message: message}
}

func NotFound(message string) error {
	return &Error{Code: CodeNotFound, Message: message}
}

func RateLimited(message string) error {
	return &Error{Code: CodeRateLimited, Message: message}
}

func Degraded(message string) error {
	return &Error{Code: CodeDegraded, Message: message}
}

// Transient wraps err as retryable. Errors that already carry a code are
// returned unchanged.
func Transient(err error, message string) error {
	if err == nil {
		return nil
	}
	if GetCode(err) != "" {
		return err
	}
	return WrapWithCode(err, CodeTransient, message)
}

func Conflict(err error, message string) error {
	if err == nil {
		return &Error{Code: CodeConflict, Message: message}
	}
	return WrapWithCode(err, CodeConflict, message)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetCode returns the error code if it exists
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetMessage returns the error message
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsRetryable reports whether the caller may retry the operation as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsAuthorization(err error) bool {
	return errors.Is(err, ErrAuthorization)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
