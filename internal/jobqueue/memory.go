package jobqueue

import (
	"context"
	"errors"
	"sync"
	"time"
)

const memoryReadyBuffer = 1024

// MemoryBroker is an in-process Broker used by tests and single-node setups.
// All state is held behind the constructor; nothing is shared at package level.
// Jobs beyond the ready buffer spill into an unbounded backlog, so Push never
// rejects a job while the broker is open.
type MemoryBroker struct {
	mu      sync.Mutex
	jobs    map[string]Job
	timers  map[string]*time.Timer
	ready   chan string
	backlog []string
	closed  bool
}

// NewMemoryBroker constructs an empty MemoryBroker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		jobs:   make(map[string]Job),
		timers: make(map[string]*time.Timer),
		ready:  make(chan string, memoryReadyBuffer),
	}
}

// Push stores the job and makes it immediately available.
func (b *MemoryBroker) Push(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("broker closed")
	}
	b.jobs[job.ID] = job
	b.enqueueLocked(job.ID)
	return nil
}

// enqueueLocked makes a job id available to Reserve. Caller holds b.mu.
func (b *MemoryBroker) enqueueLocked(id string) {
	select {
	case b.ready <- id:
	default:
		b.backlog = append(b.backlog, id)
	}
}

// Reserve blocks for a short interval waiting for an available job.
func (b *MemoryBroker) Reserve(ctx context.Context) (Job, bool, error) {
	if job, ok := b.takeBacklogged(); ok {
		return job, true, nil
	}

	timer := time.NewTimer(50 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Job{}, false, ctx.Err()
	case <-timer.C:
		return Job{}, false, nil
	case id := <-b.ready:
		b.mu.Lock()
		job, ok := b.jobs[id]
		b.mu.Unlock()
		if !ok {
			// Discarded while queued.
			return Job{}, false, nil
		}
		return job, true, nil
	}
}

// takeBacklogged pops the oldest spilled job id, if any.
func (b *MemoryBroker) takeBacklogged() (Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.backlog) > 0 {
		id := b.backlog[0]
		b.backlog = b.backlog[1:]
		if job, ok := b.jobs[id]; ok {
			return job, true
		}
	}
	return Job{}, false
}

// Update persists mutated job state.
func (b *MemoryBroker) Update(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[job.ID] = job
	return nil
}

// Schedule stores the job and re-queues it once readyAt has passed.
func (b *MemoryBroker) Schedule(ctx context.Context, job Job, readyAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("broker closed")
	}
	b.jobs[job.ID] = job

	id := job.ID
	delay := time.Until(readyAt)
	if delay < 0 {
		delay = 0
	}
	b.timers[id] = time.AfterFunc(delay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.timers, id)
		if b.closed {
			return
		}
		b.enqueueLocked(id)
	})
	return nil
}

// Complete discards the job record.
func (b *MemoryBroker) Complete(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.jobs, job.ID)
	return nil
}

// Fail retains the failed job for inspection.
func (b *MemoryBroker) Fail(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[job.ID] = job
	return nil
}

// Get returns the stored job record.
func (b *MemoryBroker) Get(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// Close stops pending timers and rejects further pushes.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	return nil
}

var _ Broker = (*MemoryBroker)(nil)
