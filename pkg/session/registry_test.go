package session

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/M1T8E6/sse-mcp-server/pkg/errors"
	"github.com/M1T8E6/sse-mcp-server/pkg/logging"
)

func newTestRegistry(t *testing.T, cfg RegistryConfig) *Registry {
	t.Helper()
	if cfg.ChannelCapacity == 0 {
		cfg.ChannelCapacity = 8
	}
	if cfg.IdleLimit == 0 {
		cfg.IdleLimit = time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	r := NewRegistry(cfg, logging.New(io.Discard, nil))
	t.Cleanup(r.Stop)
	return r
}

func TestRegistryCreateAndGet(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	s := r.Create()
	assert.True(t, strings.HasPrefix(s.ID(), "sess_"))
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, 0, s.Outbound().Len())

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestRegistrySessionIDsAreUnique(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.Create().ID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	_, err := r.Get("sess_nope")
	assert.True(t, bridgeerrors.IsSessionNotFound(err))
}

func TestRegistryRemove(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	s := r.Create()
	r.Remove(s.ID())

	assert.Equal(t, StateClosed, s.State())
	_, err := r.Get(s.ID())
	assert.True(t, bridgeerrors.IsSessionNotFound(err))

	// Outbound queue released: producers get a closed error.
	enqueueErr := s.Outbound().Enqueue([]byte(`{}`))
	assert.True(t, bridgeerrors.IsChannelClosed(enqueueErr))
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	s := r.Create()
	assert.True(t, r.Remove(s.ID()))
	assert.False(t, r.Remove(s.ID()))
	assert.False(t, r.Remove("sess_never_existed"))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	var wg sync.WaitGroup
	ids := make(chan string, 200)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- r.Create().ID()
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := r.Get(id)
			assert.NoError(t, err)
			r.Remove(id)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
}

func TestRegistrySweepEvictsIdleUnattached(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{
		IdleLimit:     30 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	})
	r.Start()

	idle := r.Create()
	attached := r.Create()
	require.NoError(t, attached.AttachStream())

	require.Eventually(t, func() bool {
		_, err := r.Get(idle.ID())
		return bridgeerrors.IsSessionNotFound(err)
	}, time.Second, 10*time.Millisecond, "idle session not evicted")

	// A session with a live stream is never idle-evicted.
	_, err := r.Get(attached.ID())
	assert.NoError(t, err)
}

func TestRegistrySweepSparesActiveSessions(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{
		IdleLimit:     60 * time.Millisecond,
		SweepInterval: 15 * time.Millisecond,
	})
	r.Start()

	s := r.Create()
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		s.Touch()
		time.Sleep(10 * time.Millisecond)
	}

	_, err := r.Get(s.ID())
	assert.NoError(t, err, "touched session must survive the sweep")
}

func TestRegistrySweepReportsIdleEviction(t *testing.T) {
	var mu sync.Mutex
	type evicted struct{ id, reason string }
	var evictions []evicted

	r := newTestRegistry(t, RegistryConfig{
		IdleLimit:     20 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
		OnEvict: func(id, reason string) {
			mu.Lock()
			evictions = append(evictions, evicted{id, reason})
			mu.Unlock()
		},
	})
	r.Start()

	idle := r.Create()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(evictions) == 1
	}, time.Second, 10*time.Millisecond, "sweep eviction not reported")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, idle.ID(), evictions[0].id)
	assert.Equal(t, EvictReasonIdle, evictions[0].reason)
}

func TestRegistryStopReportsShutdownEvictions(t *testing.T) {
	var mu sync.Mutex
	reasons := make(map[string]string)

	r := newTestRegistry(t, RegistryConfig{
		OnEvict: func(id, reason string) {
			mu.Lock()
			reasons[id] = reason
			mu.Unlock()
		},
	})

	a := r.Create()
	b := r.Create()
	require.True(t, r.Remove(a.ID()))
	r.Stop()

	mu.Lock()
	defer mu.Unlock()
	// Remove is attributed by its caller, so only the session still
	// registered at Stop is reported.
	assert.NotContains(t, reasons, a.ID())
	assert.Equal(t, EvictReasonShutdown, reasons[b.ID()])
	assert.Len(t, reasons, 1)
}

func TestRegistryStopClosesAllSessions(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	a := r.Create()
	b := r.Create()
	r.Stop()

	assert.Equal(t, StateClosed, a.State())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, r.Count())
}

func TestSessionAttachStreamExclusivity(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	s := r.Create()
	require.NoError(t, s.AttachStream())

	// A second attach on the same id must be refused: one live stream per
	// session, ever.
	assert.Error(t, s.AttachStream())
}

func TestSessionAttachStreamClosedSession(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	s := r.Create()
	r.Remove(s.ID())
	assert.Error(t, s.AttachStream())
}

func TestSessionTouchAdvancesActivity(t *testing.T) {
	r := newTestRegistry(t, RegistryConfig{})

	s := r.Create()
	before := s.LastActivityAt()
	time.Sleep(5 * time.Millisecond)
	s.Touch()
	assert.True(t, s.LastActivityAt().After(before))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(99).String())
}
