package queue_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/corequeue/queue"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	handler := func(context.Context, *queue.Job) error { return nil }

	t.Run("nil queue error", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(nil, handler)
		assert.ErrorIs(t, err, queue.ErrQueueNil)
		assert.Nil(t, w)
	})

	t.Run("nil handler error", func(t *testing.T) {
		t.Parallel()

		q, _ := newTestQueue(t, "nohandler")

		w, err := queue.NewWorker(q, nil)
		assert.ErrorIs(t, err, queue.ErrNoHandler)
		assert.Nil(t, w)
	})

	t.Run("assigns a worker id", func(t *testing.T) {
		t.Parallel()

		q, _ := newTestQueue(t, "workerid")

		w, err := queue.NewWorker(q, handler)
		require.NoError(t, err)
		assert.NotEmpty(t, w.WorkerID())
	})
}

func TestWorker_ProcessesJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	q, _ := newTestQueue(t, "workerok")

	payloads := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	for _, p := range payloads {
		_, err := q.Enqueue(ctx, p)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	handler := func(_ context.Context, job *queue.Job) error {
		mu.Lock()
		seen[string(job.Payload)] = true
		mu.Unlock()
		return nil
	}

	w, err := queue.NewWorker(q, handler,
		queue.WithPollInterval(10*time.Millisecond),
		queue.WithMaxConcurrent(2),
		queue.WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	require.Eventually(t, func() bool {
		size, err := q.Size(ctx)
		if err != nil || size != 0 {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == len(payloads)
	}, 3*time.Second, 20*time.Millisecond, "worker should drain the queue")

	mu.Lock()
	defer mu.Unlock()
	for _, p := range payloads {
		assert.True(t, seen[string(p)], "payload %s should be processed", p)
	}
}

func TestWorker_FailedJobsDeadLettered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	q, _ := newTestQueue(t, "workerfail",
		queue.WithMaxAttempts(1), queue.WithDeadLetter())

	_, err := q.Enqueue(ctx, []byte("poison"))
	require.NoError(t, err)

	handler := func(context.Context, *queue.Job) error {
		return errors.New("boom")
	}

	w, err := queue.NewWorker(q, handler,
		queue.WithPollInterval(10*time.Millisecond),
		queue.WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	require.Eventually(t, func() bool {
		entries, err := q.DeadLetters(ctx)
		return err == nil && len(entries) == 1
	}, 3*time.Second, 20*time.Millisecond, "failed job should be dead-lettered")
}

func TestWorker_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	q, _ := newTestQueue(t, "workerpanic",
		queue.WithMaxAttempts(1), queue.WithDeadLetter())

	_, err := q.Enqueue(ctx, []byte("bad"))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, []byte("good"))
	require.NoError(t, err)

	var completed sync.WaitGroup
	completed.Add(1)
	handler := func(_ context.Context, job *queue.Job) error {
		if string(job.Payload) == "bad" {
			panic("handler exploded")
		}
		completed.Done()
		return nil
	}

	w, err := queue.NewWorker(q, handler,
		queue.WithPollInterval(10*time.Millisecond),
		queue.WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	// The panicking job is dead-lettered and the worker keeps going.
	require.Eventually(t, func() bool {
		entries, err := q.DeadLetters(ctx)
		return err == nil && len(entries) == 1
	}, 3*time.Second, 20*time.Millisecond, "panicked job should be dead-lettered")

	done := make(chan struct{})
	go func() {
		completed.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not process the remaining job after a panic")
	}
}

func TestWorker_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	q, _ := newTestQueue(t, "workerlife")

	handler := func(context.Context, *queue.Job) error { return nil }

	w, err := queue.NewWorker(q, handler,
		queue.WithPollInterval(10*time.Millisecond),
		queue.WithLogger(quietLogger()))
	require.NoError(t, err)

	t.Run("stop before start", func(t *testing.T) {
		assert.Error(t, w.Stop())
	})

	t.Run("double start", func(t *testing.T) {
		require.NoError(t, w.Start(ctx))
		assert.Error(t, w.Start(ctx))
		require.NoError(t, w.Stop())
	})

	t.Run("restart after stop", func(t *testing.T) {
		require.NoError(t, w.Start(ctx))
		require.NoError(t, w.Stop())
	})
}

func TestWorker_RunWithContext(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, "workerrun")

	handler := func(context.Context, *queue.Job) error { return nil }

	w, err := queue.NewWorker(q, handler,
		queue.WithPollInterval(10*time.Millisecond),
		queue.WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx)() }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
