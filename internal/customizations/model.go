package customizations

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Customization is one tailoring request and its pipeline outcome.
type Customization struct {
	ID         string
	UserID     string
	DocumentID string

	// CachedText memoizes the conversion stage; once set it is never
	// cleared by the pipeline, only by deleting the record.
	CachedText string

	TargetDescription string
	TargetTitle       string
	TargetOrg         string

	Status       string
	ErrorCode    string
	ErrorMessage string

	ResultKey string
	ResultURL string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Progress maps a status to an informational percentage for pollers. It is
// derived, never stored.
func Progress(status string) int {
	switch status {
	case StatusPending:
		return 10
	case StatusProcessing:
		return 50
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}
