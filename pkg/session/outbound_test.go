package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/M1T8E6/sse-mcp-server/pkg/errors"
)

func TestOutboundFIFOOrder(t *testing.T) {
	// Property: for any sequence of enqueues, dequeue observes the same
	// order. Randomized payloads across several runs.
	for run := 0; run < 10; run++ {
		t.Run(fmt.Sprintf("run_%d", run), func(t *testing.T) {
			n := rand.Intn(50) + 1
			q := NewOutbound("sess_fifo", n)

			payloads := make([]string, n)
			for i := range payloads {
				payloads[i] = fmt.Sprintf(`{"seq":%d,"nonce":%d}`, i, rand.Int63())
				require.NoError(t, q.Enqueue(json.RawMessage(payloads[i])))
			}

			ctx := context.Background()
			for i := 0; i < n; i++ {
				msg, err := q.Dequeue(ctx)
				require.NoError(t, err)
				assert.Equal(t, payloads[i], string(msg.Payload))
				assert.Equal(t, uint64(i+1), msg.Sequence)
			}
		})
	}
}

func TestOutboundChannelFull(t *testing.T) {
	q := NewOutbound("sess_full", 2)

	require.NoError(t, q.Enqueue(json.RawMessage(`1`)))
	require.NoError(t, q.Enqueue(json.RawMessage(`2`)))

	// Third enqueue must fail immediately without blocking.
	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(json.RawMessage(`3`))
	}()

	select {
	case err := <-done:
		assert.True(t, bridgeerrors.IsChannelFull(err))
	case <-time.After(time.Second):
		t.Fatal("enqueue on full channel blocked")
	}

	// Existing contents are intact.
	msg, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `1`, string(msg.Payload))

	// Capacity freed, enqueue succeeds again.
	assert.NoError(t, q.Enqueue(json.RawMessage(`4`)))
}

func TestOutboundCloseWakesBlockedDequeue(t *testing.T) {
	q := NewOutbound("sess_close", 4)

	result := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		result <- err
	}()

	// Give the consumer a moment to block.
	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-result:
		assert.True(t, bridgeerrors.IsChannelClosed(err))
	case <-time.After(time.Second):
		t.Fatal("dequeue not woken by close")
	}
}

func TestOutboundEnqueueAfterClose(t *testing.T) {
	q := NewOutbound("sess_closed", 4)
	q.Close()

	err := q.Enqueue(json.RawMessage(`{}`))
	assert.True(t, bridgeerrors.IsChannelClosed(err))
}

func TestOutboundCloseIsIdempotent(t *testing.T) {
	q := NewOutbound("sess_idem", 4)
	q.Close()
	assert.NotPanics(t, q.Close)
}

func TestOutboundCloseDrainsPending(t *testing.T) {
	q := NewOutbound("sess_drain", 4)
	require.NoError(t, q.Enqueue(json.RawMessage(`"a"`)))
	require.NoError(t, q.Enqueue(json.RawMessage(`"b"`)))
	q.Close()

	ctx := context.Background()
	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"a"`, string(msg.Payload))

	msg, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"b"`, string(msg.Payload))

	_, err = q.Dequeue(ctx)
	assert.True(t, bridgeerrors.IsChannelClosed(err))
}

func TestOutboundDequeueRespectsContext(t *testing.T) {
	q := NewOutbound("sess_ctx", 4)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOutboundConcurrentEnqueueClose(t *testing.T) {
	// Closing while producers are active must fail their enqueues, never
	// panic or hang.
	q := NewOutbound("sess_race", 8)

	stop := make(chan struct{})
	errs := make(chan error, 1024)
	for p := 0; p < 4; p++ {
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
					errs <- q.Enqueue(json.RawMessage(`{}`))
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()
	time.Sleep(10 * time.Millisecond)
	close(stop)

	// After close, no enqueue may report success once a closed error was
	// seen is not strictly orderable; just assert none panicked and the
	// final state rejects producers.
	err := q.Enqueue(json.RawMessage(`{}`))
	assert.True(t, bridgeerrors.IsChannelClosed(err))
}

func TestOutboundSequenceSkipsFailedEnqueues(t *testing.T) {
	q := NewOutbound("sess_seq", 1)

	require.NoError(t, q.Enqueue(json.RawMessage(`1`)))
	require.Error(t, q.Enqueue(json.RawMessage(`2`))) // full, not counted

	msg, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), msg.Sequence)

	require.NoError(t, q.Enqueue(json.RawMessage(`3`)))
	msg, err = q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), msg.Sequence)
}
