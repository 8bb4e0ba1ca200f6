// Package session owns the mapping from session id to session state: the
// registry creates, looks up, and evicts sessions, and each session carries
// the bounded outbound queue feeding its SSE stream.
package session

import (
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle state of a session
type State int

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session represents one open streaming connection. The id doubles as a
// capability: ingestion requests are routed by it and it is never reused.
type Session struct {
	id        string
	outbound  *Outbound
	createdAt time.Time

	mu             sync.Mutex
	state          State
	lastActivityAt time.Time
	streamAttached bool
}

func newSession(id string, capacity int) *Session {
	now := time.Now()
	return &Session{
		id:             id,
		outbound:       NewOutbound(id, capacity),
		createdAt:      now,
		state:          StateOpen,
		lastActivityAt: now,
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Outbound returns the session's outbound queue
func (s *Session) Outbound() *Outbound { return s.outbound }

// CreatedAt returns the creation time
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivityAt returns the time of the last ingestion or stream attach
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityAt
}

// Touch records activity, deferring idle eviction
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityAt = time.Now()
}

// AttachStream marks the session as having a live stream. At most one
// stream may ever attach; there is no reattach after detach.
func (s *Session) AttachStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return fmt.Errorf("cannot attach stream to %s session %s", s.state, s.id)
	}
	if s.streamAttached {
		return fmt.Errorf("session %s already has an attached stream", s.id)
	}
	s.streamAttached = true
	s.lastActivityAt = time.Now()
	return nil
}

// StreamAttached reports whether a live stream is bound to the session
func (s *Session) StreamAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamAttached
}

// close transitions the session to CLOSED and releases the outbound queue.
// Idempotent; only the registry calls it.
func (s *Session) close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	s.streamAttached = false
	s.mu.Unlock()

	// Close outside the session mutex: Close wakes a consumer that may
	// immediately call back into State().
	s.outbound.Close()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}
