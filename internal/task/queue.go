package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Common errors returned by the Queue
var ErrQueueClosed = errors.New("job queue is closed")

// Queue is an unbounded, thread-safe FIFO of pending job identifiers.
// Enqueue never blocks or rejects based on size; Dequeue blocks until a job
// is available. Each identifier is handed out to exactly one dequeuer.
//
// The queue holds only transient references: the persisted job row remains
// the single source of truth for job state.
type Queue struct {
	logger *slog.Logger

	mu     sync.Mutex
	ids    []uuid.UUID
	closed bool

	// wake has capacity 1 and is signalled on enqueue; done is closed on
	// Close to release every blocked dequeuer.
	wake chan struct{}
	done chan struct{}
}

// NewQueue creates a new empty job queue.
func NewQueue(logger *slog.Logger) *Queue {
	return &Queue{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue appends a job identifier to the tail of the queue. It never blocks;
// the only failure mode is a closed queue.
func (q *Queue) Enqueue(id uuid.UUID) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.ids = append(q.ids, id)
	depth := len(q.ids)
	q.mu.Unlock()

	q.notify()

	q.logger.Debug("job enqueued",
		"job_id", id,
		"queue_len", depth)
	return nil
}

// Dequeue removes and returns the identifier at the head of the queue,
// blocking while the queue is empty. It returns ErrQueueClosed once the
// queue is closed and drained, or the context error on cancellation.
func (q *Queue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	for {
		q.mu.Lock()
		if len(q.ids) > 0 {
			id := q.ids[0]
			q.ids = q.ids[1:]
			remaining := len(q.ids)
			q.mu.Unlock()

			// Other waiters may still have work to pick up.
			if remaining > 0 {
				q.notify()
			}
			return id, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return uuid.Nil, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		case <-q.done:
			// Re-check: items enqueued before Close are still delivered.
		case <-q.wake:
		}
	}
}

// Len returns the number of pending job identifiers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// Close marks the queue closed, rejecting further enqueues and releasing
// blocked dequeuers once the remaining items are drained.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.done)
	q.logger.Info("job queue closed")
}

// notify wakes one blocked dequeuer, if any.
func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
