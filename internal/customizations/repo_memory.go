package customizations

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for tests and local development.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]Customization
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]Customization)}
}

// Create stores a record.
func (r *MemoryRepo) Create(ctx context.Context, c Customization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[c.ID] = c
	return nil
}

// GetByID fetches a record by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Customization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.records[id]
	if !ok {
		return Customization{}, ErrNotFound
	}
	return c, nil
}

// GetByIDForUser fetches a record scoped to a user.
func (r *MemoryRepo) GetByIDForUser(ctx context.Context, userID, id string) (Customization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.records[id]
	if !ok || c.UserID != userID {
		return Customization{}, ErrNotFound
	}
	return c, nil
}

// ListByUser lists records newest-first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Customization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Customization
	for _, c := range r.records {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// SetProcessing marks a record processing.
func (r *MemoryRepo) SetProcessing(ctx context.Context, id string, startedAt time.Time) error {
	return r.update(id, func(c *Customization) {
		c.Status = StatusProcessing
		c.StartedAt = &startedAt
	})
}

// SetCachedText memoizes the conversion output.
func (r *MemoryRepo) SetCachedText(ctx context.Context, id, text string) error {
	return r.update(id, func(c *Customization) {
		c.CachedText = text
	})
}

// SetCompleted records a successful pipeline run.
func (r *MemoryRepo) SetCompleted(ctx context.Context, id, resultKey, resultURL string, completedAt time.Time) error {
	return r.update(id, func(c *Customization) {
		c.Status = StatusCompleted
		c.ResultKey = resultKey
		c.ResultURL = resultURL
		c.CompletedAt = &completedAt
		c.ErrorCode = ""
		c.ErrorMessage = ""
	})
}

// SetFailed records a failed pipeline run.
func (r *MemoryRepo) SetFailed(ctx context.Context, id, code, message string, completedAt time.Time) error {
	return r.update(id, func(c *Customization) {
		c.Status = StatusFailed
		c.ErrorCode = code
		c.ErrorMessage = message
		c.CompletedAt = &completedAt
	})
}

// ResetForRetry moves a failed record back to pending keeping CachedText.
func (r *MemoryRepo) ResetForRetry(ctx context.Context, id string) error {
	return r.update(id, func(c *Customization) {
		c.Status = StatusPending
		c.ErrorCode = ""
		c.ErrorMessage = ""
		c.ResultKey = ""
		c.ResultURL = ""
		c.StartedAt = nil
		c.CompletedAt = nil
	})
}

func (r *MemoryRepo) update(id string, mutate func(*Customization)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	mutate(&c)
	r.records[id] = c
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
