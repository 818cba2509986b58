// Package gwerrors defines the gateway's error taxonomy and its mapping to
// JSON-RPC error codes and HTTP status codes.
package gwerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a category of gateway error.
type Code string

// The gateway's error taxonomy. Every error surfaced across a session
// boundary (MCP response, admin HTTP API) is classified as one of these.
const (
	CodeInvalidRequest Code = "invalid_request"
	CodeMethodNotFound Code = "method_not_found"
	CodeAuthRequired   Code = "auth_required"
	CodeForbidden      Code = "forbidden"
	CodePolicyDenied   Code = "policy_denied"
	CodeNotFound       Code = "not_found"
	CodeConflict       Code = "conflict"
	CodeUpstreamError  Code = "upstream_error"
	CodeTimeout        Code = "timeout"
	CodeCancelled      Code = "cancelled"
	CodeRateLimited    Code = "rate_limited"
	CodeInternal       Code = "internal"
	CodePluginError    Code = "plugin_error"
)

// jsonRPCCodes maps each Code to a JSON-RPC 2.0 error code. Codes in the
// -32000..-32099 range are reserved for implementation-defined server
// errors, which is where the gateway's taxonomy lives; -32601/-32602 reuse
// the JSON-RPC spec's own reserved codes where they line up semantically.
var jsonRPCCodes = map[Code]int{
	CodeInvalidRequest: -32602,
	CodeMethodNotFound: -32601,
	CodeAuthRequired:   -32001,
	CodeForbidden:      -32002,
	CodePolicyDenied:   -32003,
	CodeNotFound:       -32004,
	CodeConflict:       -32005,
	CodeUpstreamError:  -32006,
	CodeTimeout:        -32007,
	CodeCancelled:      -32008,
	CodeRateLimited:    -32009,
	CodeInternal:       -32000,
	CodePluginError:    -32010,
}

var httpStatuses = map[Code]int{
	CodeInvalidRequest: http.StatusBadRequest,
	CodeMethodNotFound: http.StatusNotFound,
	CodeAuthRequired:   http.StatusUnauthorized,
	CodeForbidden:      http.StatusForbidden,
	CodePolicyDenied:   http.StatusForbidden,
	CodeNotFound:       http.StatusNotFound,
	CodeConflict:       http.StatusConflict,
	CodeUpstreamError:  http.StatusBadGateway,
	CodeTimeout:        http.StatusGatewayTimeout,
	CodeCancelled:      499, // client closed request, nginx convention
	CodeRateLimited:    http.StatusTooManyRequests,
	CodeInternal:       http.StatusInternalServerError,
	CodePluginError:    http.StatusUnprocessableEntity,
}

// Error is a gateway error carrying a taxonomy Code, a human-readable
// message, optional structured details, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// JSONRPCCode returns the JSON-RPC 2.0 error code for this error.
func (e *Error) JSONRPCCode() int {
	if c, ok := jsonRPCCodes[e.Code]; ok {
		return c
	}
	return jsonRPCCodes[CodeInternal]
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatuses[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates a new Error of the given code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error of the given code, wrapping cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// WithDetails attaches structured details and returns the same Error for
// chaining at the call site.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// CodeOf extracts the taxonomy Code from err, defaulting to CodeInternal if
// err is not (or does not wrap) a *Error.
func CodeOf(err error) Code {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return CodeInternal
}

// Is reports whether err is (or wraps) a gateway error of the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Convenience constructors for the most commonly constructed codes.

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

func MethodNotFound(format string, args ...any) *Error {
	return New(CodeMethodNotFound, format, args...)
}

func InvalidRequest(format string, args ...any) *Error {
	return New(CodeInvalidRequest, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(CodeForbidden, format, args...)
}

func AuthRequired(format string, args ...any) *Error {
	return New(CodeAuthRequired, format, args...)
}

func PolicyDenied(format string, args ...any) *Error {
	return New(CodePolicyDenied, format, args...)
}

func Internal(cause error, format string, args ...any) *Error {
	return Wrap(CodeInternal, cause, format, args...)
}

func Upstream(cause error, format string, args ...any) *Error {
	return Wrap(CodeUpstreamError, cause, format, args...)
}

func RateLimited(format string, args ...any) *Error {
	return New(CodeRateLimited, format, args...)
}
