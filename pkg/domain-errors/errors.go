// Package domainerrors defines coded domain errors. Services return these so
// transport layers can translate them without inspecting error strings.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error for transport mapping and retry decisions.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal"
)

// Error carries a code and a caller-safe message. The wrapped cause, if any,
// stays out of the message so infrastructure detail never leaks to clients.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e Error) Unwrap() error {
	return e.cause
}

// New builds a domain error with no underlying cause.
func New(code Code, message string) Error {
	return Error{Code: code, Message: message}
}

// Wrap attaches a code and caller-safe message to an underlying error.
func Wrap(err error, code Code, message string) Error {
	return Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de Error
	return errors.As(err, &de) && de.Code == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should send.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
