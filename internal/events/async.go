package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultBuffer is the queue length used by the server.
const DefaultBuffer = 256

type pending struct {
	ctx context.Context
	evt Event
}

// AsyncPublisher queues events for a single background sender so request
// handlers never wait on the broker. Events that arrive while the queue is
// full are dropped and logged.
type AsyncPublisher struct {
	next  *Publisher
	log   *zap.Logger
	queue chan pending
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncPublisher starts the sender goroutine. Call Close to stop it.
func NewAsyncPublisher(next *Publisher, buffer int, log *zap.Logger) *AsyncPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	a := &AsyncPublisher{
		next:  next,
		log:   log,
		queue: make(chan pending, buffer),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues evt and returns immediately. The event keeps the time it
// was enqueued, not the time it reaches the broker.
func (a *AsyncPublisher) Publish(ctx context.Context, evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.log.Warn("drop event after close", zap.String("type", string(evt.Type)), zap.Int("userId", evt.UserID))
		return
	}
	select {
	case a.queue <- pending{ctx: context.WithoutCancel(ctx), evt: evt}:
	default:
		a.log.Warn("event queue full, dropping event",
			zap.String("type", string(evt.Type)),
			zap.Int("userId", evt.UserID),
		)
	}
}

// Close stops accepting events and waits for queued ones to be sent, or for
// ctx to end.
func (a *AsyncPublisher) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		a.log.Warn("stopped waiting for queued events", zap.Int("pending", len(a.queue)))
		return ctx.Err()
	}
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for item := range a.queue {
		a.next.Publish(item.ctx, item.evt)
	}
}
