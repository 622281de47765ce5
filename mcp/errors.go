// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import "fmt"

// Standard JSON-RPC 2.0 and MCP-specific error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeRequestTimeout is returned when a request exceeds its timeout
	// without a response, including after progress-driven extension.
	CodeRequestTimeout = -32001
	// CodeConnectionClosed is the internal error surfaced to callers whose
	// in-flight requests were still pending when the connection closed.
	CodeConnectionClosed = -32000
	// CodeCancelled is the internal error surfaced to callers whose request
	// was cancelled via notifications/cancelled.
	CodeCancelled = -32800
)

// Error is the error type returned by Runtime and Session operations. It
// wraps a JSON-RPC error code with an optional underlying cause.
type Error struct {
	Code    int
	Message string
	Data    any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (code %d): %v", e.Message, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code int, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// ErrMethodNotFound returns an *Error for an unrecognized method.
func ErrMethodNotFound(method string) *Error {
	return newError(CodeMethodNotFound, fmt.Sprintf("method not found: %s", method))
}

// ErrMethodNotSupported returns an *Error for a method the local
// capability gate rejects before the request is ever transmitted.
func ErrMethodNotSupported(method string) *Error {
	return newError(CodeMethodNotFound, fmt.Sprintf("method not supported by peer capabilities: %s", method))
}

// ErrInvalidParams returns an *Error wrapping a params-decoding failure.
func ErrInvalidParams(cause error) *Error {
	return wrapError(CodeInvalidParams, "invalid params", cause)
}

// ErrInternal returns an *Error wrapping an unexpected handler failure.
func ErrInternal(cause error) *Error {
	return wrapError(CodeInternalError, "internal error", cause)
}

// ErrRequestTimeout returns an *Error for a request whose deadline (total
// or since-last-progress) elapsed without a response.
func ErrRequestTimeout() *Error {
	return newError(CodeRequestTimeout, "request timed out")
}

// ErrCancelled returns an *Error for a request terminated by
// notifications/cancelled.
func ErrCancelled(reason string) *Error {
	msg := "request cancelled"
	if reason != "" {
		msg = fmt.Sprintf("request cancelled: %s", reason)
	}
	return newError(CodeCancelled, msg)
}

// ErrConnectionClosed returns an *Error for a request that was pending
// when its connection closed.
func ErrConnectionClosed() *Error {
	return newError(CodeConnectionClosed, "connection closed")
}
