// Package domainerrors defines the coded error taxonomy shared by all
// modules.
//
// Services return *Error values; the HTTP layer maps codes to statuses and
// callers branch with HasCode. Infrastructure sentinels (pkg/platform/
// sentinel) are translated into coded errors at the service boundary so
// storage details never leak upward.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for programmatic handling.
type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeValidation        Code = "validation_error"
	CodeGatingViolation   Code = "gating_violation"
	CodeAlreadyFinalized  Code = "already_finalized"
	CodeInvalidTransition Code = "invalid_transition"
	CodeConflict          Code = "conflict"
	CodeUnauthorized      Code = "unauthorized"
	CodeInternal          Code = "internal_error"
)

// Error is a coded domain error with optional structured details.
type Error struct {
	Code    Code
	Message string
	Details map[string]string

	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// WithDetail adds one structured detail and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// HasCode reports whether err, or any error it wraps, carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
