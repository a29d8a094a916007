package task

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// testWriter discards log output in tests.
type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(testLogger())

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(id))
	}
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range ids {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue(testLogger())
	id := uuid.New()

	got := make(chan uuid.UUID, 1)
	go func() {
		dequeued, err := q.Dequeue(context.Background())
		if err == nil {
			got <- dequeued
		}
	}()

	// Give the dequeuer time to block on the empty queue.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(id))

	select {
	case dequeued := <-got:
		assert.Equal(t, id, dequeued)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake after enqueue")
	}
}

func TestQueueDequeueContextCancellation(t *testing.T) {
	q := NewQueue(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return on context cancellation")
	}
}

func TestQueueExactlyOnceDelivery(t *testing.T) {
	q := NewQueue(testLogger())

	const jobs = 200
	const consumers = 8

	for i := 0; i < jobs; i++ {
		require.NoError(t, q.Enqueue(uuid.New()))
	}

	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[id]++
				total := len(seen)
				mu.Unlock()
				if total == jobs {
					cancel()
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, jobs)
	for id, count := range seen {
		assert.Equal(t, 1, count, "job %s delivered more than once", id)
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(testLogger())
	id := uuid.New()
	require.NoError(t, q.Enqueue(id))

	q.Close()

	// Enqueue after close is rejected.
	assert.ErrorIs(t, q.Enqueue(uuid.New()), ErrQueueClosed)

	// Items enqueued before close are still delivered.
	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	// A drained closed queue reports closed instead of blocking.
	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueCloseReleasesBlockedDequeuers(t *testing.T) {
	q := NewQueue(testLogger())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return after close")
	}
}
