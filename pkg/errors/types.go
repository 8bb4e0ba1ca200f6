// Package errors provides structured error handling for the SSE MCP server.
// It defines error types that map to JSON-RPC error codes and carry enough
// context for logging and programmatic handling at the HTTP boundary.
package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category classifies an error for handling and reporting
type Category string

const (
	CategoryValidation Category = "validation"
	CategorySession    Category = "session"
	CategoryChannel    Category = "channel"
	CategoryStream     Category = "stream"
	CategoryProtocol   Category = "protocol"
	CategoryInternal   Category = "internal"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context carries information about where and when an error occurred
type Context struct {
	SessionID string    `json:"session_id,omitempty"`
	Method    string    `json:"method,omitempty"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BridgeError is the interface implemented by all errors produced by the bridge
type BridgeError interface {
	error

	// Code returns the JSON-RPC error code
	Code() int

	// Message returns a human-readable error message
	Message() string

	// Detail returns a technical description for debugging
	Detail() string

	// Category returns the error category for classification
	Category() Category

	// Severity returns the error severity level
	Severity() Severity

	// Context returns the error context, may be nil
	Context() *Context

	// WithContext returns a copy of the error carrying the provided context
	WithContext(ctx *Context) BridgeError

	// WithDetail returns a copy of the error with additional detail
	WithDetail(detail string) BridgeError

	// Retryable reports whether the caller may retry the failed operation
	Retryable() bool

	// Unwrap returns the underlying cause, if any
	Unwrap() error
}

type baseError struct {
	code      int
	message   string
	detail    string
	category  Category
	severity  Severity
	retryable bool
	context   *Context
	cause     error
}

func (e *baseError) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("%s: %s", e.message, e.detail)
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Detail() string     { return e.detail }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Context() *Context  { return e.context }
func (e *baseError) Retryable() bool    { return e.retryable }
func (e *baseError) Unwrap() error      { return e.cause }

// WithContext returns a copy of the error carrying the provided context
func (e *baseError) WithContext(ctx *Context) BridgeError {
	clone := *e
	clone.context = ctx
	return &clone
}

// WithDetail returns a copy of the error with additional detail
func (e *baseError) WithDetail(detail string) BridgeError {
	clone := *e
	if clone.detail != "" {
		clone.detail = fmt.Sprintf("%s; %s", clone.detail, detail)
	} else {
		clone.detail = detail
	}
	return &clone
}

// MarshalJSON renders the error as a structured JSON object
func (e *baseError) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"code":      e.code,
		"message":   e.message,
		"category":  string(e.category),
		"severity":  string(e.severity),
		"retryable": e.retryable,
	}
	if e.detail != "" {
		out["detail"] = e.detail
	}
	if e.context != nil {
		out["context"] = e.context
	}
	if e.cause != nil {
		out["cause"] = e.cause.Error()
	}
	return json.Marshal(out)
}

func newTimestampedContext() *Context {
	return &Context{Timestamp: time.Now()}
}

// New creates a BridgeError with the given parameters
func New(code int, message string, category Category, severity Severity) BridgeError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context:  &Context{Timestamp: time.Now()},
	}
}

// Wrap wraps an existing error as a BridgeError
func Wrap(err error, code int, message string, category Category, severity Severity) BridgeError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		context:  &Context{Timestamp: time.Now()},
	}
}

// AsBridgeError extracts a BridgeError from err if it is one
func AsBridgeError(err error) (BridgeError, bool) {
	if err == nil {
		return nil, false
	}
	be, ok := err.(BridgeError)
	return be, ok
}

// IsCategory reports whether err is a BridgeError of the given category
func IsCategory(err error, category Category) bool {
	if be, ok := AsBridgeError(err); ok {
		return be.Category() == category
	}
	return false
}

// IsCode reports whether err is a BridgeError carrying the given code
func IsCode(err error, code int) bool {
	if be, ok := AsBridgeError(err); ok {
		return be.Code() == code
	}
	return false
}
