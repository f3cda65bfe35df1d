// Package domainerrors defines the typed error results returned from services
// to the HTTP boundary. Every error carries a stable Code; validation and
// reference failures additionally carry the full list of offending fields.
package domainerrors

import (
	"errors"
	"net/http"
	"strings"
)

// Code is a stable, machine-readable error kind.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeInvalidReference   Code = "invalid_reference"
	CodeNotFound           Code = "not_found"
	CodeForbidden          Code = "forbidden"
	CodeIllegalTransition  Code = "illegal_transition"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "service_unavailable"
	CodeInvariantViolation Code = "invariant_violation"
)

// FieldViolation names one offending input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the domain error type.
type Error struct {
	Code       Code
	Message    string
	Violations []FieldViolation
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, cause: err}
}

// WithViolations creates a validation-style error listing every offending field.
// The message is derived from the violations.
func WithViolations(code Code, violations []FieldViolation) error {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return &Error{
		Code:       code,
		Message:    strings.Join(parts, "; "),
		Violations: violations,
	}
}

// As returns the outermost domain error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in err has the given code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Is is an alias of HasCode kept for call-site readability in handlers.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the error code, or CodeInternal for non-domain errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// ViolationsOf returns the field violations carried by err, if any.
func ViolationsOf(err error) []FieldViolation {
	if de, ok := As(err); ok {
		return de.Violations
	}
	return nil
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInvalidReference:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeIllegalTransition, CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
