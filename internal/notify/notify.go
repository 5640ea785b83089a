// Package notify implements the outbound alert queue (spec.md §5): a
// bounded FIFO buffer decouples signal/regime/trade events from delivery,
// dropping and counting on overflow rather than blocking the engine's
// single writer. Grounded on the teacher's internal/events.EventBus
// drop-on-full Publish, generalized to a single ordered delivery worker
// instead of a fan-out subscriber pool, since notify has exactly one
// sink rather than many handlers.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sink delivers one formatted message to the outside world (Telegram,
// Slack, a webhook, stdout...). The engine is agnostic to what it is.
type Sink func(message string) error

// Queue is a bounded, non-blocking outbound message buffer with a
// minimum inter-message delivery delay.
type Queue struct {
	messages chan string
	sink     Sink
	minDelay time.Duration
	log      *zap.SugaredLogger

	dropped int64
}

// Config controls the queue's capacity and pacing.
type Config struct {
	Capacity int
	MinDelay time.Duration
}

// DefaultConfig matches spec.md §5: capacity ~500, spacing ~200ms.
func DefaultConfig() Config {
	return Config{Capacity: 500, MinDelay: 200 * time.Millisecond}
}

// NewQueue creates a queue that delivers to sink. sink may be nil, in
// which case messages are silently discarded (useful when no outbound
// channel is configured).
func NewQueue(cfg Config, sink Sink, log *zap.SugaredLogger) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 500
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 200 * time.Millisecond
	}
	return &Queue{
		messages: make(chan string, cfg.Capacity),
		sink:     sink,
		minDelay: cfg.MinDelay,
		log:      log,
	}
}

// Enqueue appends a message without blocking. If the buffer is full the
// message is dropped and counted; the caller (the engine's single
// writer) must never stall waiting on notification delivery.
func (q *Queue) Enqueue(message string) bool {
	select {
	case q.messages <- message:
		return true
	default:
		q.dropped++
		if q.log != nil {
			q.log.Warnw("notify queue full, dropping message", "dropped_total", q.dropped)
		}
		return false
	}
}

// Dropped returns the number of messages dropped for a full buffer.
func (q *Queue) Dropped() int64 {
	return q.dropped
}

// Run delivers queued messages to the sink, pacing each send by at
// least minDelay, until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.minDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q.messages:
			if q.sink != nil {
				if err := q.sink(msg); err != nil && q.log != nil {
					q.log.Errorw("notify sink failed", "error", err)
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
