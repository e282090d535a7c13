package queue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/corequeue/queue"
)

func TestJob_SingleResolution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("complete is terminal", func(t *testing.T) {
		t.Parallel()

		q, _ := newTestQueue(t, "jobdone")

		_, err := q.Enqueue(ctx, []byte("payload"))
		require.NoError(t, err)

		job, err := q.Dequeue(ctx)
		require.NoError(t, err)

		require.NoError(t, job.Complete(ctx))
		assert.ErrorIs(t, job.Complete(ctx), queue.ErrAlreadyResolved)
		assert.ErrorIs(t, job.Error(ctx), queue.ErrAlreadyResolved)
		assert.ErrorIs(t, job.Defer(ctx), queue.ErrAlreadyResolved)
	})

	t.Run("error is terminal", func(t *testing.T) {
		t.Parallel()

		q, _ := newTestQueue(t, "joberr")

		_, err := q.Enqueue(ctx, []byte("payload"))
		require.NoError(t, err)

		job, err := q.Dequeue(ctx)
		require.NoError(t, err)

		require.NoError(t, job.Error(ctx))
		assert.ErrorIs(t, job.Complete(ctx), queue.ErrAlreadyResolved)
	})

	t.Run("defer is terminal", func(t *testing.T) {
		t.Parallel()

		q, _ := newTestQueue(t, "jobdefer")

		_, err := q.Enqueue(ctx, []byte("payload"))
		require.NoError(t, err)

		job, err := q.Dequeue(ctx)
		require.NoError(t, err)

		require.NoError(t, job.Defer(ctx))
		assert.ErrorIs(t, job.Error(ctx), queue.ErrAlreadyResolved)
	})

}

func TestJob_Attempts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	q, _ := newTestQueue(t, "jobattempts")

	enqueued, err := q.Enqueue(ctx, []byte("payload"))
	require.NoError(t, err)

	// The enqueue-time handle observes live state too.
	attempts, err := enqueued.Attempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, attempts)

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)

	attempts, err = enqueued.Attempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	attempts, err = job.Attempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestJob_Result(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("set then read through the handle", func(t *testing.T) {
		t.Parallel()

		q, _ := newTestQueue(t, "jobresult", queue.WithResults())

		enqueued, err := q.Enqueue(ctx, []byte("payload"))
		require.NoError(t, err)

		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, job.SetResult(ctx, []byte("42")))
		require.NoError(t, job.Complete(ctx))

		// A producer-side handle sees the stored result.
		data, err := enqueued.Result(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("42"), data)
	})

	t.Run("write-once enforced through the handle", func(t *testing.T) {
		t.Parallel()

		q, _ := newTestQueue(t, "jobresultdup", queue.WithResults())

		_, err := q.Enqueue(ctx, []byte("payload"))
		require.NoError(t, err)

		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, job.SetResult(ctx, []byte("first")))
		assert.ErrorIs(t, job.SetResult(ctx, []byte("second")), queue.ErrDuplicateResult)
	})

	t.Run("cached after first read", func(t *testing.T) {
		t.Parallel()

		q, storage := newTestQueue(t, "jobresultcache", queue.WithResults())

		enqueued, err := q.Enqueue(ctx, []byte("payload"))
		require.NoError(t, err)
		require.NoError(t, q.PutResult(ctx, enqueued.ID, []byte("cached")))

		data, err := enqueued.Result(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("cached"), data)

		// Dropping the backing record does not affect the cached handle.
		require.NoError(t, storage.Delete(ctx, enqueued.ID+":RESULT"))
		data, err = enqueued.Result(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("cached"), data)
	})

	t.Run("absent result reads as nil", func(t *testing.T) {
		t.Parallel()

		q, _ := newTestQueue(t, "jobresultnone", queue.WithResults())

		enqueued, err := q.Enqueue(ctx, []byte("payload"))
		require.NoError(t, err)

		data, err := enqueued.Result(ctx)
		require.NoError(t, err)
		assert.Nil(t, data)
	})
}
