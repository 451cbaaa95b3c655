package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-parser/internal/jobs"
	"github.com/dvloznov/statement-parser/internal/logger"
)

// Options configures a Queue.
type Options struct {
	// BufferSize is how many jobs may wait before Publish fails.
	BufferSize int
	// Workers is the number of jobs processed concurrently.
	Workers int
	// MaxRetries applies to jobs published without their own limit.
	MaxRetries int
	// Backoff is multiplied by the retry count before a job is requeued.
	Backoff time.Duration
}

// Queue is a channel-backed job publisher and consumer for a single
// process. It is safe for concurrent use.
type Queue struct {
	opts      Options
	jobChan   chan *jobs.ParseJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
}

// NewQueue creates a new in-memory job queue.
func NewQueue(store jobs.JobStore, opts Options) *Queue {
	if opts.BufferSize < 1 {
		opts.BufferSize = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Queue{
		opts:      opts,
		jobChan:   make(chan *jobs.ParseJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
	}
}

// Publish assigns defaults, records the job and enqueues it. It does not
// block when the buffer is full.
func (q *Queue) Publish(ctx context.Context, job *jobs.ParseJob) error {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.opts.MaxRetries
	}
	return q.enqueue(ctx, job)
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.ParseJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Saved before the send: a worker owns the job once it is on the channel.
	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	default:
		job.Status = jobs.JobStatusFailed
		job.Error = jobs.ErrQueueFull.Error()
		job.Data = nil
		q.save(ctx, job)
		return jobs.ErrQueueFull
	}
}

// Start launches the worker goroutines.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one attempt and records the outcome. Failed attempts are
// requeued after a linear backoff until MaxRetries is reached.
func (q *Queue) processJob(ctx context.Context, job *jobs.ParseJob, handler jobs.Handler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()
	ctx = logger.WithContext(ctx, log)

	now := time.Now().UTC()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	artifact, err := handler(ctx, job)

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		job.Artifact = &artifact
		job.Data = nil
		q.save(ctx, job)
		log.Info().Dur("elapsed", completedAt.Sub(now)).Msg("job completed")
		return
	}

	job.Error = err.Error()
	if jobs.IsPermanent(err) || job.RetryCount >= job.MaxRetries {
		q.fail(ctx, job)
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.save(ctx, job)
	log.Warn().Err(err).Int("retry_count", job.RetryCount).Msg("job failed, retrying")

	backoff := time.Duration(job.RetryCount) * q.opts.Backoff
	time.AfterFunc(backoff, func() {
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.enqueue(ctx, job); err != nil {
			job.Error = fmt.Sprintf("%s (requeue failed: %v)", job.Error, err)
			q.fail(context.WithoutCancel(ctx), job)
		}
	})
}

func (q *Queue) fail(ctx context.Context, job *jobs.ParseJob) {
	job.Status = jobs.JobStatusFailed
	job.Data = nil
	q.save(ctx, job)
	log := logger.FromContext(ctx)
	log.Error().Str("error", job.Error).Msg("job failed")
}

func (q *Queue) save(ctx context.Context, job *jobs.ParseJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("failed to save job state")
	}
}

// Stop closes the queue and waits for in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
