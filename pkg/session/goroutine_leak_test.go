package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/M1T8E6/sse-mcp-server/pkg/logging"
	"github.com/M1T8E6/sse-mcp-server/pkg/utils"
)

// Stop must release the sweep goroutine and unblock every consumer parked
// in Dequeue.
func TestRegistryStopReleasesGoroutines(t *testing.T) {
	detector := utils.NewGoroutineLeakDetector(t)
	detector.Start()

	r := NewRegistry(RegistryConfig{
		ChannelCapacity: 4,
		IdleLimit:       time.Minute,
		SweepInterval:   10 * time.Millisecond,
	}, logging.New(io.Discard, nil))
	r.Start()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		s := r.Create()
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Blocks until Stop closes the queue.
			_, _ = s.Outbound().Dequeue(context.Background())
		}()
	}

	r.Stop()
	wg.Wait()

	detector.Check()
}
