// Package queue implements the FIFO job queue poller (component H):
// RPOP from the right of "jobs:default", sleep poll_interval on an empty
// queue, sleep 2x poll_interval after a transport or decode error.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/biomarker-io/worker/internal/job"
)

// DefaultQueueName is the list key jobs are pushed onto.
const DefaultQueueName = "jobs:default"

// Handler processes one decoded job payload. It is expected never to
// return control until the job is fully recorded as succeeded or failed
// (job.Runner.Run has this shape).
type Handler func(ctx context.Context, payload job.Payload)

// Poller cooperatively pops jobs off a Redis list and hands them to
// Handle, one at a time, until Stop is called or ctx is canceled.
type Poller struct {
	client       *redis.Client
	queueName    string
	pollInterval time.Duration
	handle       Handler
	logger       *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPoller builds a Poller. queueName defaults to DefaultQueueName when
// empty.
func NewPoller(client *redis.Client, queueName string, pollInterval time.Duration, handle Handler, logger *slog.Logger) *Poller {
	if queueName == "" {
		queueName = DefaultQueueName
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		client:       client,
		queueName:    queueName,
		pollInterval: pollInterval,
		handle:       handle,
		logger:       logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Run blocks, polling the queue until ctx is canceled or Stop is called.
// It is meant to run in its own goroutine (see cmd/worker).
func (p *Poller) Run(ctx context.Context) {
	defer close(p.doneCh)

	p.logger.Info("starting queue poller", "queue", p.queueName, "poll_interval", p.pollInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		if p.pollOnce(ctx) {
			return
		}
	}
}

// pollOnce pops and processes at most one job. It returns true when the
// poller should stop (context canceled or Stop called while waiting).
func (p *Poller) pollOnce(ctx context.Context) bool {
	message, err := p.client.RPop(ctx, p.queueName).Result()

	switch {
	case errors.Is(err, redis.Nil):
		return p.wait(ctx, p.pollInterval)
	case err != nil:
		p.logger.Error("queue poll error", "error", err)
		return p.wait(ctx, 2*p.pollInterval)
	}

	var payload job.Payload
	if err := json.Unmarshal([]byte(message), &payload); err != nil {
		p.logger.Error("failed to decode job message", "error", err)
		return p.wait(ctx, 2*p.pollInterval)
	}

	p.logger.Info("received job", "job_id", payload.JobID)

	switch payload.Type {
	case "extract_features":
		p.handle(ctx, payload)
	default:
		p.logger.Warn("unknown job type", "type", payload.Type)
	}

	return false
}

// wait sleeps for d, returning true if it was interrupted by shutdown.
func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-p.stopCh:
		return true
	case <-timer.C:
		return false
	}
}

// Stop signals the poller to exit after its current iteration and blocks
// until Run has returned. Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}
