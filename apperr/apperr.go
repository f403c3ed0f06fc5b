// Package apperr defines the typed errors services return and the HTTP status
// each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an application error.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindUnauthorized     Kind = "unauthorized"
	KindConflict         Kind = "conflict"
	KindInvalidOperation Kind = "invalid_operation"
	KindDependency       Kind = "dependency"
	KindInternal         Kind = "internal"
)

// Error carries a kind, a user-facing message and, for validation failures,
// one message per offending field.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation reports every violated field at once.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Invalid data", Fields: fields}
}

// Field is a validation error on a single field.
func Field(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: map[string]string{field: message}}
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

func Conflict(field, message string) *Error {
	e := New(KindConflict, message)
	if field != "" {
		e.Fields = map[string]string{field: message}
	}
	return e
}

func InvalidOperation(message string) *Error {
	return New(KindInvalidOperation, message)
}

// Dependency wraps a failure of the database or an external collaborator.
func Dependency(message string, err error) *Error {
	return Wrap(KindDependency, message, err)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, "Server error", err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps a kind to its HTTP status. Conflicts and invalid operations are
// reported as 400 like any other rejected input.
func Status(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict, KindInvalidOperation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
