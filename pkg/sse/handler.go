package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	bridgeerrors "github.com/M1T8E6/sse-mcp-server/pkg/errors"
	"github.com/M1T8E6/sse-mcp-server/pkg/logging"
	"github.com/M1T8E6/sse-mcp-server/pkg/observability"
	"github.com/M1T8E6/sse-mcp-server/pkg/protocol"
	"github.com/M1T8E6/sse-mcp-server/pkg/session"
)

// Adapter is the contract between the transport and the protocol server.
// Handle receives one structurally valid JSON-RPC payload for an open
// session; any response it produces goes through the session's outbound
// queue, never back on the POST that carried the payload.
type Adapter interface {
	Handle(ctx context.Context, sessionID string, payload json.RawMessage)
}

// maxPayloadBytes bounds the ingestion request body
const maxPayloadBytes = 1 << 20

// sessionIDParam is the query parameter carrying the session id
const sessionIDParam = "session_id"

// Config tunes the transport handler
type Config struct {
	// MessagesPath is the ingestion endpoint path announced to clients
	MessagesPath string
	// KeepAliveInterval is the cadence of comment frames on idle streams
	KeepAliveInterval time.Duration
	// AllowedOrigins is the Origin allow-list; "*" allows any
	AllowedOrigins []string

	// Version and Environment are reported by the health endpoint
	Version     string
	Environment string
}

// Handler bridges HTTP to the protocol server: GET /sse opens a stream,
// POST /messages feeds it.
type Handler struct {
	config   Config
	registry *session.Registry
	adapter  Adapter
	origins  *originValidator
	logger   logging.Logger
	metrics  *observability.Metrics
}

// NewHandler creates the transport handler
func NewHandler(config Config, registry *session.Registry, adapter Adapter, logger logging.Logger, metrics *observability.Metrics) *Handler {
	if config.MessagesPath == "" {
		config.MessagesPath = "/messages"
	}
	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = 15 * time.Second
	}
	return &Handler{
		config:   config,
		registry: registry,
		adapter:  adapter,
		origins:  newOriginValidator(config.AllowedOrigins),
		logger:   logger.WithFields(logging.String("component", "transport")),
		metrics:  metrics,
	}
}

// HandleStream serves GET /sse. It creates a session, announces the
// ingestion endpoint as the first frame, then drains the session's
// outbound queue onto the stream until the client disconnects or a write
// fails. The session dies with the stream; there is no reattach.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if origin := r.Header.Get("Origin"); !h.origins.Allow(origin) {
		h.logger.Warn("rejected stream with disallowed origin", logging.String("origin", origin))
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := h.registry.Create()
	h.metrics.SessionOpened()
	logger := h.logger.WithFields(logging.String("session_id", sess.ID()))

	if err := sess.AttachStream(); err != nil {
		// Freshly created sessions always accept an attach; anything else
		// means the registry is broken.
		h.removeSession(sess.ID(), observability.RemoveReasonShutdown)
		logger.Error("failed to attach stream", logging.ErrorField(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sw := newStreamWriter(w, flusher)

	// The endpoint event must arrive before any message: the client cannot
	// post until it learns the session id.
	endpoint := fmt.Sprintf("%s?%s=%s", h.config.MessagesPath, sessionIDParam, sess.ID())
	if err := sw.WriteFrame(Frame{Event: EventEndpoint, Data: endpoint}); err != nil {
		h.metrics.StreamWriteFailure()
		h.removeSession(sess.ID(), observability.RemoveReasonWriteFailure)
		logger.Warn("client vanished before endpoint event", logging.ErrorField(err))
		return
	}
	logger.Info("stream opened", logging.String("endpoint", endpoint))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The pump is the only consumer of the queue, which preserves FIFO
	// order on the wire.
	pumpDone := make(chan pumpResult, 1)
	go h.pump(ctx, sess, sw, logger, pumpDone)

	keepAlive := time.NewTicker(h.config.KeepAliveInterval)
	defer keepAlive.Stop()

	reason := observability.RemoveReasonDisconnect
	for {
		select {
		case <-ctx.Done():
			h.removeSession(sess.ID(), reason)
			<-pumpDone
			logger.Info("stream closed", logging.String("reason", reason))
			return

		case res := <-pumpDone:
			if res.writeFailed {
				reason = observability.RemoveReasonWriteFailure
			}
			h.removeSession(sess.ID(), reason)
			logger.Info("stream closed", logging.String("reason", reason))
			return

		case <-keepAlive.C:
			if err := sw.WriteComment("keep-alive"); err != nil {
				h.metrics.StreamWriteFailure()
				reason = observability.RemoveReasonWriteFailure
				cancel()
			} else {
				h.metrics.KeepAliveSent()
			}
		}
	}
}

type pumpResult struct {
	writeFailed bool
}

// pump drains the outbound queue onto the stream. A failed write is
// terminal: the message is not retried and the stream is torn down.
func (h *Handler) pump(ctx context.Context, sess *session.Session, sw *streamWriter, logger logging.Logger, done chan<- pumpResult) {
	var lastSeq uint64

	for {
		msg, err := sess.Outbound().Dequeue(ctx)
		if err != nil {
			// Context cancelled or queue closed; either way the stream
			// is ending.
			done <- pumpResult{}
			return
		}

		if msg.Sequence <= lastSeq {
			logger.Error("outbound sequence went backwards",
				logging.Int64("sequence", int64(msg.Sequence)),
				logging.Int64("last", int64(lastSeq)))
		}
		lastSeq = msg.Sequence

		frame := Frame{
			ID:    strconv.FormatUint(msg.Sequence, 10),
			Event: EventMessage,
			Data:  string(msg.Payload),
		}
		if err := sw.WriteFrame(frame); err != nil {
			h.metrics.StreamWriteFailure()
			logger.Warn("stream write failed",
				logging.ErrorField(bridgeerrors.NewStreamWriteError(err, sess.ID())))
			done <- pumpResult{writeFailed: true}
			return
		}
		h.metrics.MessageDelivered()
	}
}

// HandleMessages serves POST /messages. A structurally valid payload for an
// open session is acknowledged with 202 before the protocol server runs;
// results arrive on the stream, not in this response.
func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get(sessionIDParam)
	if sessionID == "" {
		h.metrics.MessageIngested("malformed")
		h.writeError(w, bridgeerrors.NewMalformedPayloadError("missing session_id query parameter"))
		return
	}

	sess, err := h.registry.Get(sessionID)
	if err != nil {
		h.metrics.MessageIngested("not_found")
		h.writeError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		h.metrics.MessageIngested("malformed")
		h.writeError(w, bridgeerrors.NewMalformedPayloadError("unreadable request body"))
		return
	}

	if err := validatePayload(body); err != nil {
		h.metrics.MessageIngested("malformed")
		h.writeError(w, err)
		return
	}

	sess.Touch()
	h.metrics.MessageIngested("accepted")

	// Detach from the request context: the POST completes now, processing
	// continues in the background.
	ctx := logging.ContextWithSessionID(context.Background(), sessionID)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("adapter panicked",
					logging.String("session_id", sessionID),
					logging.Any("panic", rec))
			}
		}()
		h.adapter.Handle(ctx, sessionID, json.RawMessage(body))
	}()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("Accepted"))
}

// healthPayload is the health endpoint response body
type healthPayload struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// HandleHealth serves GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthPayload{
		Status:      "healthy",
		Version:     h.config.Version,
		Environment: h.config.Environment,
	})
}

// validatePayload checks that body is a JSON-RPC 2.0 request, notification,
// or response without interpreting it.
func validatePayload(body []byte) error {
	if len(body) == 0 {
		return bridgeerrors.NewMalformedPayloadError("empty request body")
	}
	if !json.Valid(body) {
		return bridgeerrors.NewMalformedPayloadError("body is not valid JSON")
	}
	if !isJSONRPC(body) {
		return bridgeerrors.NewMalformedPayloadError("body is not a JSON-RPC 2.0 message")
	}
	return nil
}

func isJSONRPC(body []byte) bool {
	return protocol.IsRequest(body) || protocol.IsNotification(body) || protocol.IsResponse(body)
}

// writeError renders a bridge error as a JSON-RPC error body with the
// appropriate HTTP status.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := bridgeerrors.HTTPStatus(err)

	be, ok := bridgeerrors.AsBridgeError(err)
	if !ok {
		http.Error(w, "internal error", status)
		return
	}

	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      nil,
		"error": map[string]interface{}{
			"code":    be.Code(),
			"message": be.Message(),
			"data":    be.Detail(),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) removeSession(id, reason string) {
	if h.registry.Remove(id) {
		h.metrics.SessionClosed(reason)
	}
}
