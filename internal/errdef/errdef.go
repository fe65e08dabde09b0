// Package errdef classifies errors so the web layer can pick a status code
// without knowing where the error came from.
package errdef

import (
	"errors"
	"fmt"
)

func NewBadRequest(format string, a ...any) error {
	return badRequest{fmt.Errorf(format, a...)}
}

type badRequest struct{ error }

func (e badRequest) Unwrap() error { return e.error }

func IsBadRequest(err error) bool {
	var e badRequest
	return errors.As(err, &e)
}

func NewUnauthorized(format string, a ...any) error {
	return unauthorized{fmt.Errorf(format, a...)}
}

type unauthorized struct{ error }

func (e unauthorized) Unwrap() error { return e.error }

func IsUnauthorized(err error) bool {
	var e unauthorized
	return errors.As(err, &e)
}

func NewForbidden(format string, a ...any) error {
	return forbidden{fmt.Errorf(format, a...)}
}

type forbidden struct{ error }

func (e forbidden) Unwrap() error { return e.error }

func IsForbidden(err error) bool {
	var e forbidden
	return errors.As(err, &e)
}

// NewNotFound creates an error representing a resource that could not be found.
func NewNotFound(format string, a ...any) error {
	return notFound{fmt.Errorf(format, a...)}
}

type notFound struct{ error }

func (e notFound) Unwrap() error { return e.error }

// IsNotFound returns true if err is an error representing a resource that could not be found and false otherwise.
func IsNotFound(err error) bool {
	var e notFound
	return errors.As(err, &e)
}

// NewConflict creates an error representing a conflicting state.
func NewConflict(format string, a ...any) error {
	return conflict{fmt.Errorf(format, a...)}
}

type conflict struct{ error }

func (e conflict) Unwrap() error { return e.error }

// IsConflict returns true if err is an error representing a conflict and false otherwise.
func IsConflict(err error) bool {
	var e conflict
	return errors.As(err, &e)
}
