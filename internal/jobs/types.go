// Package jobs runs statement parses in the background so API callers can
// submit a document and poll for the artifact.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-parser/internal/domain"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the artifact is ready.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ErrNotFound is returned by a JobStore for unknown job ids.
var ErrNotFound = errors.New("job not found")

var (
	// ErrQueueClosed is returned when publishing to a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull is returned when a queue has no room for another job.
	ErrQueueFull = errors.New("queue is full")
)

// ParseJob is one statement submitted for background parsing.
type ParseJob struct {
	JobID string `json:"job_id"`

	// Filename is the name the document was uploaded under.
	Filename string `json:"filename"`

	// Data holds the document bytes until the job finishes.
	Data []byte `json:"-"`

	// TestMode runs the fixture path instead of reading Data.
	TestMode bool `json:"test_mode,omitempty"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Artifact is set once the job completes.
	Artifact *domain.Artifact `json:"artifact,omitempty"`
}

// Finished reports whether the job has reached a terminal status.
func (j *ParseJob) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Publisher enqueues parse jobs.
type Publisher interface {
	Publish(ctx context.Context, job *ParseJob) error
	Close() error
}

// Consumer processes queued jobs.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each one.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// Handler processes one job and returns its artifact. Errors wrapped with
// Permanent are not retried.
type Handler func(ctx context.Context, job *ParseJob) (domain.Artifact, error)

// JobStore keeps job state for status polling.
type JobStore interface {
	SaveJob(ctx context.Context, job *ParseJob) error
	GetJob(ctx context.Context, jobID string) (*ParseJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ParseJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, such as an unsupported
// document format.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
