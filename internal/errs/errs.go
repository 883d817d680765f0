// Package errs defines the coded error type shared by services and handlers.
//
// Services return *Error values carrying one of the codes below; the HTTP
// layer turns the code into a status with HTTPStatus and never inspects the
// message.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	EInternal            = "internal error"
	EInvalid             = "invalid"
	EUnauthorized        = "unauthorized"
	EForbidden           = "forbidden"
	ENotFound            = "not found"
	EConflict            = "conflict"
	ETooManyRequests     = "too many requests"
	EUnavailable         = "unavailable"
	ERangeNotSatisfiable = "range not satisfiable"
)

// Error carries a machine readable Code, an operator facing Msg, the
// operation that produced it and an optional wrapped cause.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		fmt.Fprintf(&b, "<%s>", e.Code)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error with a code and a formatted message.
func New(code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code, op, msg string) *Error {
	return &Error{Code: code, Op: op, Msg: msg, Err: err}
}

func Invalid(op, format string, args ...any) *Error {
	return New(EInvalid, op, format, args...)
}

func NotFound(op, format string, args ...any) *Error {
	return New(ENotFound, op, format, args...)
}

func Conflict(op, format string, args ...any) *Error {
	return New(EConflict, op, format, args...)
}

func Forbidden(op, format string, args ...any) *Error {
	return New(EForbidden, op, format, args...)
}

func Internal(err error, op, msg string) *Error {
	return Wrap(err, EInternal, op, msg)
}

// ErrorCode returns the code of the outermost *Error in the chain that has
// one, or EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	for errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		if e.Err == nil {
			break
		}
		err = e.Err
	}
	return EInternal
}

// ErrorMessage returns the message to show to API clients. Internal errors
// never leak their cause.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) || ErrorCode(err) == EInternal {
		return "internal error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return ErrorCode(err)
}

// HTTPStatus maps an error code to the response status.
func HTTPStatus(code string) int {
	switch code {
	case EInvalid:
		return http.StatusBadRequest
	case EUnauthorized:
		return http.StatusUnauthorized
	case EForbidden:
		return http.StatusForbidden
	case ENotFound:
		return http.StatusNotFound
	case EConflict:
		return http.StatusConflict
	case ETooManyRequests:
		return http.StatusTooManyRequests
	case EUnavailable:
		return http.StatusServiceUnavailable
	case ERangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	default:
		return http.StatusInternalServerError
	}
}
