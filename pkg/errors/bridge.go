package errors

import (
	"fmt"
	"net/http"
)

// Standard JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Bridge-specific error codes in the implementation-defined range
const (
	// CodeSessionNotFound indicates a message referenced an unknown or closed session
	CodeSessionNotFound = -32001
	// CodeChannelFull indicates the session's outbound channel is at capacity
	CodeChannelFull = -32002
	// CodeChannelClosed indicates the session was torn down while a producer was active
	CodeChannelClosed = -32003
	// CodeStreamWriteFailure indicates a network-level write to the SSE stream failed
	CodeStreamWriteFailure = -32004
)

// NewSessionNotFoundError reports that no open session exists for the given id.
// The client must reconnect the stream to obtain a fresh session id.
func NewSessionNotFoundError(sessionID string) BridgeError {
	return &baseError{
		code:     CodeSessionNotFound,
		message:  "session not found",
		detail:   fmt.Sprintf("no open session with id %q", sessionID),
		category: CategorySession,
		severity: SeverityWarning,
		context:  newContext(sessionID),
	}
}

// NewChannelFullError reports backpressure on a session's outbound channel.
// The producer decides whether to retry, drop, or slow down.
func NewChannelFullError(sessionID string, capacity int) BridgeError {
	return &baseError{
		code:      CodeChannelFull,
		message:   "outbound channel full",
		detail:    fmt.Sprintf("capacity %d reached", capacity),
		category:  CategoryChannel,
		severity:  SeverityWarning,
		retryable: true,
		context:   newContext(sessionID),
	}
}

// NewChannelClosedError reports an enqueue against a torn-down session.
func NewChannelClosedError(sessionID string) BridgeError {
	return &baseError{
		code:     CodeChannelClosed,
		message:  "outbound channel closed",
		category: CategoryChannel,
		severity: SeverityInfo,
		context:  newContext(sessionID),
	}
}

// NewStreamWriteError reports a failed write to the SSE stream. Terminal for
// the connection, never retried.
func NewStreamWriteError(err error, sessionID string) BridgeError {
	return &baseError{
		code:     CodeStreamWriteFailure,
		message:  "stream write failed",
		category: CategoryStream,
		severity: SeverityError,
		cause:    err,
		context:  newContext(sessionID),
	}
}

// NewMalformedPayloadError reports a request body that failed structural
// validation before reaching the protocol server.
func NewMalformedPayloadError(detail string) BridgeError {
	return &baseError{
		code:     CodeParseError,
		message:  "malformed payload",
		detail:   detail,
		category: CategoryValidation,
		severity: SeverityWarning,
	}
}

// NewMethodNotFoundError reports an unknown JSON-RPC method.
func NewMethodNotFoundError(method string) BridgeError {
	return &baseError{
		code:     CodeMethodNotFound,
		message:  "method not found",
		detail:   fmt.Sprintf("unsupported method %q", method),
		category: CategoryProtocol,
		severity: SeverityWarning,
	}
}

// NewInvalidParamsError reports structurally invalid request parameters.
func NewInvalidParamsError(detail string) BridgeError {
	return &baseError{
		code:     CodeInvalidParams,
		message:  "invalid params",
		detail:   detail,
		category: CategoryProtocol,
		severity: SeverityWarning,
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) BridgeError {
	return &baseError{
		code:     CodeInternalError,
		message:  "internal error",
		category: CategoryInternal,
		severity: SeverityError,
		cause:    err,
	}
}

// IsSessionNotFound reports whether err is a session-not-found error
func IsSessionNotFound(err error) bool { return IsCode(err, CodeSessionNotFound) }

// IsChannelFull reports whether err is a channel-full error
func IsChannelFull(err error) bool { return IsCode(err, CodeChannelFull) }

// IsChannelClosed reports whether err is a channel-closed error
func IsChannelClosed(err error) bool { return IsCode(err, CodeChannelClosed) }

// HTTPStatus maps a bridge error to the HTTP status reported by the
// ingestion endpoint.
func HTTPStatus(err error) int {
	be, ok := AsBridgeError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch be.Code() {
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeChannelFull:
		return http.StatusServiceUnavailable
	case CodeParseError, CodeInvalidRequest, CodeInvalidParams:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newContext(sessionID string) *Context {
	ctx := newTimestampedContext()
	ctx.SessionID = sessionID
	return ctx
}
