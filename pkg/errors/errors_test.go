package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name      string
		err       BridgeError
		code      int
		category  Category
		retryable bool
	}{
		{
			name:      "session not found",
			err:       NewSessionNotFoundError("sess_abc"),
			code:      CodeSessionNotFound,
			category:  CategorySession,
			retryable: false,
		},
		{
			name:      "channel full is retryable",
			err:       NewChannelFullError("sess_abc", 64),
			code:      CodeChannelFull,
			category:  CategoryChannel,
			retryable: true,
		},
		{
			name:      "channel closed",
			err:       NewChannelClosedError("sess_abc"),
			code:      CodeChannelClosed,
			category:  CategoryChannel,
			retryable: false,
		},
		{
			name:      "stream write failure",
			err:       NewStreamWriteError(errors.New("broken pipe"), "sess_abc"),
			code:      CodeStreamWriteFailure,
			category:  CategoryStream,
			retryable: false,
		},
		{
			name:      "malformed payload",
			err:       NewMalformedPayloadError("unexpected end of JSON input"),
			code:      CodeParseError,
			category:  CategoryValidation,
			retryable: false,
		},
		{
			name:      "method not found",
			err:       NewMethodNotFoundError("tools/unknown"),
			code:      CodeMethodNotFound,
			category:  CategoryProtocol,
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code())
			assert.Equal(t, tt.category, tt.err.Category())
			assert.Equal(t, tt.retryable, tt.err.Retryable())
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"session not found maps to 404", NewSessionNotFoundError("s"), http.StatusNotFound},
		{"channel full maps to 503", NewChannelFullError("s", 1), http.StatusServiceUnavailable},
		{"malformed payload maps to 400", NewMalformedPayloadError("bad"), http.StatusBadRequest},
		{"invalid params maps to 400", NewInvalidParamsError("bad"), http.StatusBadRequest},
		{"internal error maps to 500", NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"plain error maps to 500", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	full := NewChannelFullError("sess_1", 8)
	closed := NewChannelClosedError("sess_1")
	notFound := NewSessionNotFoundError("sess_1")

	assert.True(t, IsChannelFull(full))
	assert.False(t, IsChannelFull(closed))
	assert.True(t, IsChannelClosed(closed))
	assert.True(t, IsSessionNotFound(notFound))
	assert.False(t, IsSessionNotFound(errors.New("session not found")))
	assert.True(t, IsCategory(full, CategoryChannel))
	assert.False(t, IsCategory(full, CategorySession))
}

func TestWithDetailDoesNotMutateOriginal(t *testing.T) {
	base := NewSessionNotFoundError("sess_1")
	detailed := base.WithDetail("during ingestion")

	assert.NotEqual(t, base.Detail(), detailed.Detail())
	assert.Contains(t, detailed.Detail(), "during ingestion")
	assert.Equal(t, base.Code(), detailed.Code())
}

func TestErrorContextPropagation(t *testing.T) {
	err := NewChannelFullError("sess_9", 16)
	require.NotNil(t, err.Context())
	assert.Equal(t, "sess_9", err.Context().SessionID)

	replaced := err.WithContext(&Context{Component: "sse", Operation: "enqueue"})
	assert.Equal(t, "sse", replaced.Context().Component)
	assert.Equal(t, "enqueue", replaced.Context().Operation)
	// original untouched
	assert.Empty(t, err.Context().Component)
}

func TestErrorJSONShape(t *testing.T) {
	err := NewChannelFullError("sess_2", 32)

	data, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, float64(CodeChannelFull), decoded["code"])
	assert.Equal(t, "outbound channel full", decoded["message"])
	assert.Equal(t, true, decoded["retryable"])
	assert.Equal(t, "channel", decoded["category"])
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("write tcp: broken pipe")
	err := NewStreamWriteError(cause, "sess_3")

	assert.ErrorIs(t, err, cause)
	be, ok := AsBridgeError(err)
	require.True(t, ok)
	assert.Equal(t, cause, be.Unwrap())
}
