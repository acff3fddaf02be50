package bridge

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeParse marks a malformed GeoJSON or style payload. The previous
	// good state is kept.
	CodeParse Code = "PARSE_ERROR"
	// CodeInvalidArgument marks a command payload of the wrong shape.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeNotImplemented marks a command with no handler.
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
	// CodeInvalidParams marks missing or malformed construction parameters.
	CodeInvalidParams Code = "INVALID_PARAMS"
	// CodeEngine marks a style build the engine refused.
	CodeEngine Code = "ENGINE_ERROR"
)

// HTTPStatus maps codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeParse, CodeInvalidArgument, CodeInvalidParams:
		return http.StatusBadRequest
	case CodeNotImplemented:
		return http.StatusNotImplemented
	case CodeEngine:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error is the bridge error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates an error with a code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is.
var (
	ErrParse           = &Error{Code: CodeParse}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
	ErrNotImplemented  = &Error{Code: CodeNotImplemented}
	ErrInvalidParams   = &Error{Code: CodeInvalidParams}
	ErrEngine          = &Error{Code: CodeEngine}
)

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
