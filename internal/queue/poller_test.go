package queue

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/biomarker-io/worker/internal/job"
)

func newTestPoller(t *testing.T, handle Handler) (*Poller, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewPoller(client, "", 10*time.Millisecond, handle, logger), mr
}

func TestPoller_PopsAndDispatchesJob(t *testing.T) {
	var mu sync.Mutex

	var received []job.Payload

	p, mr := newTestPoller(t, func(_ context.Context, payload job.Payload) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, payload)
	})

	payload, _ := json.Marshal(job.Payload{JobID: "job-1", Type: "extract_features"})
	mr.Lpush(DefaultQueueName, string(payload))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()

		if n == 1 {
			break
		}

		time.Sleep(5 * time.Millisecond)
	}

	p.Stop()

	mu.Lock()
	defer mu.Unlock()

	if len(received) != 1 || received[0].JobID != "job-1" {
		t.Fatalf("received = %v, want one job-1", received)
	}
}

func TestPoller_IgnoresUnknownJobType(t *testing.T) {
	called := false

	p, mr := newTestPoller(t, func(_ context.Context, _ job.Payload) {
		called = true
	})

	payload, _ := json.Marshal(job.Payload{JobID: "job-2", Type: "something_else"})
	mr.Lpush(DefaultQueueName, string(payload))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	if called {
		t.Errorf("handler should not run for an unknown job type")
	}
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	p, _ := newTestPoller(t, func(context.Context, job.Payload) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	p.Stop()
	p.Stop()
}
