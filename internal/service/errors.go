package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so callers can match on the failure
// class instead of string-comparing messages.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindConflict      ErrorKind = "CONFLICT"
	KindBadRequest    ErrorKind = "BAD_REQUEST"
	KindUnprocessable ErrorKind = "UNPROCESSABLE"
	KindInternal      ErrorKind = "INTERNAL"
)

// Error is a tagged domain error.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// NotFoundError builds a NotFound domain error.
func NotFoundError(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// ConflictError builds a Conflict domain error.
func ConflictError(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// BadRequestError builds a BadRequest domain error.
func BadRequestError(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

// UnprocessableError builds an Unprocessable domain error.
func UnprocessableError(msg string) *Error { return &Error{Kind: KindUnprocessable, Message: msg} }

// InternalError wraps an unexpected storage/rendering failure.
func InternalError(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}

// KindOf extracts the domain error kind, defaulting to KindInternal for
// untyped errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
