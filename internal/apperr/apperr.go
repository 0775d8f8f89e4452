// Package apperr classifies errors so transports can map them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthenticated
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Kinded is implemented by errors that know their own classification.
type Kinded interface {
	Kind() Kind
}

type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Kind() Kind { return e.kind }

// Message is the client-safe part of the error.
func (e *Error) Message() string { return e.message }

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

// KindOf walks the chain and returns the first classification found.
func KindOf(err error) Kind {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage never exposes the text of internal errors.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return "internal server error"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
