package sse

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/M1T8E6/sse-mcp-server/pkg/logging"
	"github.com/M1T8E6/sse-mcp-server/pkg/observability"
)

// requestIDHeader carries the correlation id assigned to every request
const requestIDHeader = "X-Request-ID"

// statusWriter captures the response status for logging and metrics. It
// forwards Flush so SSE streaming keeps working behind the middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withCORS emits CORS headers for allowed origins and answers preflight
// requests. Disallowed origins get no CORS headers; the stream handler
// additionally refuses them outright.
func withCORS(origins *originValidator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && origins.Allow(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRequestID assigns a correlation id to requests that do not carry one
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// withObservability logs each completed request and records its duration.
// Stream requests show up here only when they end, with their full
// lifetime as the duration.
func withObservability(logger logging.Logger, metrics *observability.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}

		metrics.ObserveHTTPRequest(r.URL.Path, r.Method, strconv.Itoa(status), duration)
		logger.Debug("request completed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Duration("duration", duration),
			logging.String("request_id", w.Header().Get(requestIDHeader)),
		)
	})
}

// Routes returns the bridge's HTTP handler with all endpoints mounted
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", h.HandleStream)
	mux.HandleFunc(h.config.MessagesPath, h.HandleMessages)
	mux.HandleFunc("/health", h.HandleHealth)

	return withRequestID(withCORS(h.origins, withObservability(h.logger, h.metrics, mux)))
}
