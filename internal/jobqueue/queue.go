package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tailor-backend/internal/shared/metrics"
	"tailor-backend/internal/shared/telemetry"
)

var (
	// ErrAlreadyStarted is returned by Start when workers are running.
	ErrAlreadyStarted = errors.New("queue already started")

	// ErrHandlerExists is returned when a job type is bound twice.
	ErrHandlerExists = errors.New("handler already registered for job type")
)

// Config sets queue-wide defaults; per-job Options override them.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	Concurrency int
}

// Queue dispatches durable jobs to registered handlers with at-least-once
// delivery and exponential retry backoff. Handler failures never propagate to
// enqueuers; terminal outcomes surface through On callbacks.
type Queue struct {
	broker Broker
	cfg    Config

	mu        sync.RWMutex
	handlers  map[string]HandlerFunc
	callbacks map[Event][]EventFunc

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Queue on the given broker.
func New(broker Broker, cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Queue{
		broker:    broker,
		cfg:       cfg,
		handlers:  make(map[string]HandlerFunc),
		callbacks: make(map[Event][]EventFunc),
	}
}

// Enqueue submits a job for asynchronous execution. It never blocks on
// execution and fails only when the broker is unreachable.
func (q *Queue) Enqueue(ctx context.Context, jobType, payload string, opts ...Option) (JobHandle, error) {
	if jobType == "" {
		return JobHandle{}, errors.New("job type is required")
	}

	now := time.Now().UTC()
	job := Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     payload,
		Status:      StatusWaiting,
		MaxAttempts: q.cfg.MaxAttempts,
		BackoffBase: q.cfg.BackoffBase,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(&job)
	}

	if err := q.broker.Push(ctx, job); err != nil {
		return JobHandle{}, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	metrics.IncJobEnqueued()
	return JobHandle{ID: job.ID}, nil
}

// RegisterHandler binds exactly one handler to a job type.
func (q *Queue) RegisterHandler(jobType string, fn HandlerFunc) error {
	if jobType == "" || fn == nil {
		return errors.New("job type and handler are required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.handlers[jobType]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, jobType)
	}
	q.handlers[jobType] = fn
	return nil
}

// On registers a callback for a terminal queue event.
func (q *Queue) On(event Event, fn EventFunc) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.callbacks[event] = append(q.callbacks[event], fn)
}

// Start launches the dispatch workers. It returns immediately.
func (q *Queue) Start(ctx context.Context) error {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if q.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.stopped = make(chan struct{})

	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.runWorker(runCtx)
		}()
	}

	go func() {
		q.wg.Wait()
		close(q.stopped)
	}()
	return nil
}

// Stop cancels dispatch and waits for in-flight handlers, bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.runMu.Lock()
	cancel := q.cancel
	stopped := q.stopped
	q.cancel = nil
	q.runMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop queue: %w", ctx.Err())
	}
}

func (q *Queue) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := q.broker.Reserve(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.emit(EventError, Job{}, err)
			telemetry.Error("jobqueue.reserve", map[string]any{"error": err.Error()})
			sleepCtx(ctx, 500*time.Millisecond)
			continue
		}
		if !ok {
			continue
		}
		q.dispatch(ctx, job)
	}
}

// dispatch runs one delivery attempt and applies the retry policy.
func (q *Queue) dispatch(ctx context.Context, job Job) {
	job.Attempts++
	job.UpdatedAt = time.Now().UTC()

	// Broker bookkeeping survives worker shutdown: the run context is
	// cancelled by Stop, and a cancelled Schedule would turn a retryable
	// failure into an exhausted one.
	bookCtx := context.WithoutCancel(ctx)

	handler := q.handlerFor(job.Type)
	if handler == nil {
		err := fmt.Errorf("no handler registered for job type %q", job.Type)
		job.Status = StatusFailed
		job.LastError = err.Error()
		if ferr := q.broker.Fail(bookCtx, job); ferr != nil {
			q.emit(EventError, job, ferr)
		}
		q.emit(EventFailed, job, err)
		return
	}

	job.Status = StatusProcessing
	if err := q.broker.Update(bookCtx, job); err != nil {
		q.emit(EventError, job, err)
	}

	err := invokeHandler(ctx, handler, job)
	if err == nil {
		job.Status = StatusCompleted
		job.UpdatedAt = time.Now().UTC()
		if cerr := q.broker.Complete(bookCtx, job); cerr != nil {
			q.emit(EventError, job, cerr)
		}
		q.emit(EventCompleted, job, nil)
		return
	}

	job.LastError = err.Error()
	job.UpdatedAt = time.Now().UTC()

	if job.Attempts < job.MaxAttempts {
		job.Status = StatusWaiting
		delay := backoffDelay(job.BackoffBase, job.Attempts)
		if serr := q.broker.Schedule(bookCtx, job, time.Now().UTC().Add(delay)); serr != nil {
			// Redelivery is impossible; treat as exhausted.
			job.Status = StatusFailed
			if ferr := q.broker.Fail(bookCtx, job); ferr != nil {
				q.emit(EventError, job, ferr)
			}
			q.emit(EventFailed, job, err)
			return
		}
		metrics.IncJobRetried()
		telemetry.Warn("jobqueue.retry", map[string]any{
			"job_id":   job.ID,
			"job_type": job.Type,
			"attempt":  job.Attempts,
			"delay_ms": delay.Milliseconds(),
			"error":    job.LastError,
		})
		return
	}

	job.Status = StatusFailed
	if ferr := q.broker.Fail(bookCtx, job); ferr != nil {
		q.emit(EventError, job, ferr)
	}
	q.emit(EventFailed, job, err)
}

func (q *Queue) handlerFor(jobType string) HandlerFunc {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.handlers[jobType]
}

func (q *Queue) emit(event Event, job Job, err error) {
	q.mu.RLock()
	fns := append([]EventFunc(nil), q.callbacks[event]...)
	q.mu.RUnlock()
	for _, fn := range fns {
		fn(job, err)
	}
}

func invokeHandler(ctx context.Context, fn HandlerFunc, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, job)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
