// Package sse implements the HTTP transport bridge: it accepts SSE stream
// connections, routes posted protocol messages to their session, and drains
// each session's outbound queue onto its stream.
package sse

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// SSE event names on the stream
const (
	// EventEndpoint is the first frame of every stream and carries the URL
	// the client must POST messages to
	EventEndpoint = "endpoint"
	// EventMessage carries one protocol payload
	EventMessage = "message"
)

// Frame is one server-sent event
type Frame struct {
	// ID is the optional SSE event id
	ID string
	// Event is the event name; empty means the default "message" type
	Event string
	// Data is the event payload. Embedded newlines become multiple data
	// lines per the SSE wire format.
	Data string
}

// encode renders the frame in SSE wire format
func (f Frame) encode() []byte {
	var b strings.Builder
	if f.ID != "" {
		b.WriteString("id: ")
		b.WriteString(f.ID)
		b.WriteByte('\n')
	}
	if f.Event != "" {
		b.WriteString("event: ")
		b.WriteString(f.Event)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(f.Data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// streamWriter serializes writes to one SSE connection. The message pump
// and the keep-alive ticker write concurrently; interleaving inside a frame
// would corrupt the stream.
type streamWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func newStreamWriter(w http.ResponseWriter, flusher http.Flusher) *streamWriter {
	return &streamWriter{w: w, flusher: flusher}
}

// WriteFrame writes one event and flushes it to the client
func (sw *streamWriter) WriteFrame(f Frame) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := sw.w.Write(f.encode()); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// WriteComment writes a comment line, used as a keep-alive
func (sw *streamWriter) WriteComment(text string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprintf(sw.w, ": %s\n\n", text); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
