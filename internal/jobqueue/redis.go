package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	reserveBlock    = time.Second
	promoteBatchMax = 100
)

// RedisOptions configures the redis-backed broker.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Name namespaces all broker keys, so multiple queues can share a server.
	Name string
}

// RedisBroker is a Broker backed by a redis server: a list for ready jobs,
// a sorted set for delayed redeliveries, and one hash per job record.
type RedisBroker struct {
	client *redis.Client
	name   string
}

// NewRedisBroker connects to redis and verifies connectivity.
func NewRedisBroker(ctx context.Context, opts RedisOptions) (*RedisBroker, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if opts.Name == "" {
		opts.Name = "default"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisBroker{client: client, name: opts.Name}, nil
}

// Push stores the job record and appends it to the ready list.
func (b *RedisBroker) Push(ctx context.Context, job Job) error {
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.jobKey(job.ID), jobFields(job))
	pipe.LPush(ctx, b.readyKey(), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}
	return nil
}

// Reserve promotes due delayed jobs, then blocks briefly on the ready list.
func (b *RedisBroker) Reserve(ctx context.Context) (Job, bool, error) {
	if err := b.promoteDue(ctx); err != nil {
		return Job{}, false, err
	}

	res, err := b.client.BRPop(ctx, reserveBlock, b.readyKey()).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("reserve: %w", err)
	}
	if len(res) != 2 {
		return Job{}, false, nil
	}

	job, err := b.Get(ctx, res[1])
	if errors.Is(err, ErrJobNotFound) {
		// Record discarded while the id sat in the ready list.
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	return job, true, nil
}

// Update persists mutated job state.
func (b *RedisBroker) Update(ctx context.Context, job Job) error {
	if err := b.client.HSet(ctx, b.jobKey(job.ID), jobFields(job)).Err(); err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return nil
}

// Schedule stores the job and adds it to the delayed set scored by ready time.
func (b *RedisBroker) Schedule(ctx context.Context, job Job, readyAt time.Time) error {
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.jobKey(job.ID), jobFields(job))
	pipe.ZAdd(ctx, b.delayedKey(), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("schedule job %s: %w", job.ID, err)
	}
	return nil
}

// Complete discards the job record.
func (b *RedisBroker) Complete(ctx context.Context, job Job) error {
	if err := b.client.Del(ctx, b.jobKey(job.ID)).Err(); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	return nil
}

// Fail retains the failed job and indexes it for inspection.
func (b *RedisBroker) Fail(ctx context.Context, job Job) error {
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.jobKey(job.ID), jobFields(job))
	pipe.SAdd(ctx, b.failedKey(), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a job record by id.
func (b *RedisBroker) Get(ctx context.Context, jobID string) (Job, error) {
	fields, err := b.client.HGetAll(ctx, b.jobKey(jobID)).Result()
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return Job{}, ErrJobNotFound
	}
	return jobFromFields(fields), nil
}

// Close releases the redis connection.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func (b *RedisBroker) promoteDue(ctx context.Context) error {
	now := time.Now().UTC().UnixMilli()
	ids, err := b.client.ZRangeByScore(ctx, b.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: promoteBatchMax,
	}).Result()
	if err != nil {
		return fmt.Errorf("promote due: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	pipe := b.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, b.delayedKey(), id)
		pipe.LPush(ctx, b.readyKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("promote due: %w", err)
	}
	return nil
}

func (b *RedisBroker) readyKey() string   { return "jobs:" + b.name + ":ready" }
func (b *RedisBroker) delayedKey() string { return "jobs:" + b.name + ":delayed" }
func (b *RedisBroker) failedKey() string  { return "jobs:" + b.name + ":failed" }
func (b *RedisBroker) jobKey(id string) string {
	return "jobs:" + b.name + ":job:" + id
}

func jobFields(job Job) map[string]any {
	return map[string]any{
		"id":           job.ID,
		"type":         job.Type,
		"payload":      job.Payload,
		"status":       string(job.Status),
		"attempts":     job.Attempts,
		"max_attempts": job.MaxAttempts,
		"backoff_ms":   job.BackoffBase.Milliseconds(),
		"last_error":   job.LastError,
		"created_at":   job.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":   job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func jobFromFields(fields map[string]string) Job {
	job := Job{
		ID:        fields["id"],
		Type:      fields["type"],
		Payload:   fields["payload"],
		Status:    Status(fields["status"]),
		LastError: fields["last_error"],
	}
	if v, err := strconv.Atoi(fields["attempts"]); err == nil {
		job.Attempts = v
	}
	if v, err := strconv.Atoi(fields["max_attempts"]); err == nil {
		job.MaxAttempts = v
	}
	if v, err := strconv.ParseInt(fields["backoff_ms"], 10, 64); err == nil {
		job.BackoffBase = time.Duration(v) * time.Millisecond
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		job.UpdatedAt = t
	}
	return job
}

var _ Broker = (*RedisBroker)(nil)
