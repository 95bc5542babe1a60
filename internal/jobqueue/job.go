package jobqueue

import (
	"context"
	"time"
)

// Status is the lifecycle state of a queued job.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const (
	// DefaultMaxAttempts bounds delivery attempts per job.
	DefaultMaxAttempts = 3

	// DefaultBackoffBase is the base for exponential redelivery delays.
	DefaultBackoffBase = 1500 * time.Millisecond
)

// Job is one dispatched unit of queued work. The queue owns its lifecycle;
// consumers see it only through handler and event callbacks.
type Job struct {
	ID          string
	Type        string
	Payload     string
	Status      Status
	Attempts    int
	MaxAttempts int
	BackoffBase time.Duration
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobHandle identifies an enqueued job.
type JobHandle struct {
	ID string
}

// HandlerFunc processes one delivery attempt. A nil return completes the job;
// an error triggers the retry policy.
type HandlerFunc func(ctx context.Context, job Job) error

// Event identifies a terminal queue notification.
type Event string

const (
	// EventCompleted fires once when a job's delivery chain succeeds.
	EventCompleted Event = "completed"

	// EventFailed fires once when a job exhausts its attempts.
	EventFailed Event = "failed"

	// EventError fires on queue infrastructure errors (broker I/O, missing
	// handler bookkeeping), not on ordinary handler failures.
	EventError Event = "error"
)

// EventFunc observes a terminal job outcome.
type EventFunc func(job Job, err error)

// Option overrides per-job queue defaults at enqueue time.
type Option func(*Job)

// WithMaxAttempts overrides the attempt budget for one job.
func WithMaxAttempts(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.MaxAttempts = n
		}
	}
}

// WithBackoffBase overrides the backoff base for one job.
func WithBackoffBase(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.BackoffBase = d
		}
	}
}

// backoffDelay computes the redelivery delay after the given attempt count:
// base * 2^attempts, with the shift capped to keep the duration sane.
func backoffDelay(base time.Duration, attempts int) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 16 {
		attempts = 16
	}
	return base * time.Duration(1<<uint(attempts))
}
