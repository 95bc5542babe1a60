package customizations

import (
	"context"
	"time"
)

// Repo defines persistence operations for customization records. Updates are
// targeted per lifecycle transition rather than whole-row writes; there is no
// per-record locking, so concurrent runs over one record are last-writer-wins.
type Repo interface {
	Create(ctx context.Context, c Customization) error
	GetByID(ctx context.Context, id string) (Customization, error)
	GetByIDForUser(ctx context.Context, userID, id string) (Customization, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Customization, error)

	SetProcessing(ctx context.Context, id string, startedAt time.Time) error
	SetCachedText(ctx context.Context, id, text string) error
	SetCompleted(ctx context.Context, id, resultKey, resultURL string, completedAt time.Time) error
	SetFailed(ctx context.Context, id, code, message string, completedAt time.Time) error

	// ResetForRetry moves a failed record back to pending, clearing the
	// error and result fields but keeping CachedText.
	ResetForRetry(ctx context.Context, id string) error
}
