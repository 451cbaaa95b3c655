package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.ParseJob {
	t.Helper()
	var job *jobs.ParseJob
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_CompletesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(store, Options{BufferSize: 4, Workers: 2})
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ParseJob) (domain.Artifact, error) {
		return domain.Artifact{Insights: []string{"ok " + job.Filename}}, nil
	}))

	job := &jobs.ParseJob{Filename: "oct.pdf", Data: []byte("%PDF")}
	require.NoError(t, q.Publish(ctx, job))
	require.NotEmpty(t, job.JobID)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	require.NotNil(t, done.Artifact)
	assert.Equal(t, []string{"ok oct.pdf"}, done.Artifact.Insights)
	assert.Nil(t, done.Data)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
}

func TestQueue_RetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(store, Options{BufferSize: 4, Workers: 1, MaxRetries: 2, Backoff: time.Millisecond})
	defer q.Close()

	var attempts atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.ParseJob) (domain.Artifact, error) {
		attempts.Add(1)
		return domain.Artifact{}, errors.New("boom")
	}))

	job := &jobs.ParseJob{Filename: "a.pdf"}
	require.NoError(t, q.Publish(context.Background(), job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 2, failed.RetryCount)
	assert.Equal(t, "boom", failed.Error)
}

func TestQueue_PermanentErrorIsNotRetried(t *testing.T) {
	store := NewStore()
	q := NewQueue(store, Options{BufferSize: 4, Workers: 1, MaxRetries: 3, Backoff: time.Millisecond})
	defer q.Close()

	var attempts atomic.Int32
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.ParseJob) (domain.Artifact, error) {
		attempts.Add(1)
		return domain.Artifact{}, jobs.Permanent(errors.New("unsupported"))
	}))

	job := &jobs.ParseJob{Filename: "a.zip"}
	require.NoError(t, q.Publish(context.Background(), job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, 0, failed.RetryCount)
}

func TestQueue_PublishWhenFull(t *testing.T) {
	store := NewStore()
	q := NewQueue(store, Options{BufferSize: 1})
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, &jobs.ParseJob{Filename: "first.pdf"}))

	second := &jobs.ParseJob{Filename: "second.pdf"}
	err := q.Publish(ctx, second)
	require.ErrorIs(t, err, jobs.ErrQueueFull)

	stored, err := store.GetJob(ctx, second.JobID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, stored.Status)
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := NewQueue(NewStore(), Options{})
	require.NoError(t, q.Stop(context.Background()))
	require.NoError(t, q.Stop(context.Background()))

	err := q.Publish(context.Background(), &jobs.ParseJob{})
	assert.ErrorIs(t, err, jobs.ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), jobs.ErrQueueClosed)
}
