package domain

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeAlreadyStreaming = "ALREADY_STREAMING"
)

// Persistence lookups return these when the record is absent.
var (
	ErrStreamNotFound      = errors.New("stream not found")
	ErrCodeSessionNotFound = errors.New("code session not found")
	ErrUserNotFound        = errors.New("user not found")
)

// Error is a failure reported to the originating connection. Message is
// shown to the client; Err is kept for logs only.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ToMessage converts the error into its wire payload.
func (e *Error) ToMessage() ErrorMessage {
	return ErrorMessage{Code: e.Code, Message: e.Message}
}

func BadRequest(message string) *Error {
	return &Error{Code: ErrCodeBadRequest, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: ErrCodeForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: message}
}

func AlreadyStreaming(message string) *Error {
	return &Error{Code: ErrCodeAlreadyStreaming, Message: message}
}

// Internal hides err behind a generic client message.
func Internal(message string, err error) *Error {
	return &Error{Code: ErrCodeInternalError, Message: message, Err: err}
}

// AsError returns err as an *Error, wrapping anything unexpected as internal.
func AsError(err error, fallback string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(fallback, err)
}
