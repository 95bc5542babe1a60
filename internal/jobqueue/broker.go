package jobqueue

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound indicates the broker holds no record for the given job id.
var ErrJobNotFound = errors.New("job not found")

// Broker is the durable transport behind a Queue. Implementations must be
// safe for concurrent use by multiple workers.
//
// Retention policy: Complete discards the job record, Fail retains it for
// inspection.
type Broker interface {
	// Push makes a job immediately available for delivery.
	Push(ctx context.Context, job Job) error

	// Reserve blocks until a job is available, the internal poll interval
	// elapses (ok=false), or ctx is done.
	Reserve(ctx context.Context) (job Job, ok bool, err error)

	// Update persists mutated job state without changing its availability.
	Update(ctx context.Context, job Job) error

	// Schedule makes a job available for delivery no earlier than readyAt.
	Schedule(ctx context.Context, job Job, readyAt time.Time) error

	// Complete records a terminal success and discards the job.
	Complete(ctx context.Context, job Job) error

	// Fail records a terminal failure and retains the job.
	Fail(ctx context.Context, job Job) error

	// Get returns the current job record, or ErrJobNotFound.
	Get(ctx context.Context, jobID string) (Job, error)

	Close() error
}
