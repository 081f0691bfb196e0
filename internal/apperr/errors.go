// Package apperr defines sentinel errors shared by the service and transport layers.
package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalid            = errors.New("invalid input")
	ErrPreconditionFailed = errors.New("precondition failed")
)
