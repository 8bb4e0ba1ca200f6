package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	bridgeerrors "github.com/M1T8E6/sse-mcp-server/pkg/errors"
	"github.com/M1T8E6/sse-mcp-server/pkg/logging"
)

// Reasons passed to OnEvict when the registry removes a session on its own
const (
	// EvictReasonIdle is reported when the background sweep evicts a
	// session that never attached a stream
	EvictReasonIdle = "idle"
	// EvictReasonShutdown is reported for sessions still registered when
	// Stop runs
	EvictReasonShutdown = "shutdown"
)

// RegistryConfig tunes a Registry
type RegistryConfig struct {
	// ChannelCapacity bounds each session's outbound queue
	ChannelCapacity int
	// IdleLimit is how long a session without an attached stream may stay
	// registered before the sweep evicts it
	IdleLimit time.Duration
	// SweepInterval is how often the background sweep runs
	SweepInterval time.Duration
	// OnEvict, when set, is called after the registry itself removes a
	// session (idle sweep or Stop). Removals through Remove are attributed
	// by the caller.
	OnEvict func(sessionID, reason string)
}

// Registry owns the set of live sessions. All mutation goes through its
// narrow API; it is safe for concurrent use.
type Registry struct {
	config RegistryConfig
	logger logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewRegistry creates a Registry. Call Start to run the idle sweep and Stop
// to tear everything down.
func NewRegistry(config RegistryConfig, logger logging.Logger) *Registry {
	return &Registry{
		config:    config,
		logger:    logger.WithFields(logging.String("component", "registry")),
		sessions:  make(map[string]*Session),
		sweepStop: make(chan struct{}),
	}
}

// Create generates a fresh session in state OPEN with an empty outbound
// queue and registers it. It never blocks.
func (r *Registry) Create() *Session {
	id := generateSessionID()

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		// 256 bits of entropy colliding means the id source is broken,
		// which is not a recoverable condition.
		panic(fmt.Sprintf("duplicate session id generated: %s", id))
	}
	s := newSession(id, r.config.ChannelCapacity)
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.Debug("session created", logging.String("session_id", id))
	return s
}

// Get returns the session for id if it exists and is still OPEN
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, exists := r.sessions[id]
	r.mu.RUnlock()

	if !exists || s.State() != StateOpen {
		return nil, bridgeerrors.NewSessionNotFoundError(id)
	}
	return s, nil
}

// Remove transitions the session to CLOSED, releases its outbound queue,
// and deregisters it. It reports whether the session existed; unknown ids
// are a no-op, making teardown idempotent.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, exists := r.sessions[id]
	if exists {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !exists {
		return false
	}
	s.close()
	r.logger.Debug("session removed", logging.String("session_id", id))
	return true
}

// Count returns the number of registered sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Start launches the background sweep that evicts idle sessions with no
// attached stream, bounding memory under abandoned-connection churn.
func (r *Registry) Start() {
	ticker := time.NewTicker(r.config.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.sweepStop:
				return
			}
		}
	}()
}

// Stop halts the sweep and removes every remaining session. Idempotent.
func (r *Registry) Stop() {
	r.sweepOnce.Do(func() {
		close(r.sweepStop)
	})

	r.mu.Lock()
	remaining := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		remaining = append(remaining, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range remaining {
		s.close()
		if r.config.OnEvict != nil {
			r.config.OnEvict(s.ID(), EvictReasonShutdown)
		}
	}
}

func (r *Registry) sweep() {
	deadline := time.Now().Add(-r.config.IdleLimit)

	r.mu.RLock()
	var idle []string
	for id, s := range r.sessions {
		if !s.StreamAttached() && s.LastActivityAt().Before(deadline) {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()

	evicted := 0
	for _, id := range idle {
		if r.Remove(id) {
			evicted++
			if r.config.OnEvict != nil {
				r.config.OnEvict(id, EvictReasonIdle)
			}
		}
	}
	if evicted > 0 {
		r.logger.Info("evicted idle sessions", logging.Int("count", evicted))
	}
}

// generateSessionID returns an unguessable session id: 32 bytes from
// crypto/rand, hex encoded, with a fixed prefix for log readability.
func generateSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return "sess_" + hex.EncodeToString(buf)
}
