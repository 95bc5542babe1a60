package customizations

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const selectColumns = `
id, user_id, document_id, cached_text, target_description, target_title,
target_org, status, error_code, error_message, result_key, result_url,
created_at, started_at, completed_at`

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new customization record.
func (r *PGRepo) Create(ctx context.Context, c Customization) error {
	const query = `
INSERT INTO customizations (
    id,
    user_id,
    document_id,
    cached_text,
    target_description,
    target_title,
    target_org,
    status,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		c.ID,
		c.UserID,
		c.DocumentID,
		nullable(c.CachedText),
		c.TargetDescription,
		c.TargetTitle,
		c.TargetOrg,
		c.Status,
		c.CreatedAt,
	)
	return err
}

// GetByID fetches a record by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Customization, error) {
	const query = `
SELECT ` + selectColumns + `
FROM customizations
WHERE id = $1
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, id))
}

// GetByIDForUser fetches a record scoped to a user.
func (r *PGRepo) GetByIDForUser(ctx context.Context, userID, id string) (Customization, error) {
	const query = `
SELECT ` + selectColumns + `
FROM customizations
WHERE user_id = $1 AND id = $2
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userID, id))
}

// ListByUser lists records ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Customization, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + selectColumns + `
FROM customizations
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customization
	for rows.Next() {
		c, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetProcessing marks a record processing.
func (r *PGRepo) SetProcessing(ctx context.Context, id string, startedAt time.Time) error {
	const query = `
UPDATE customizations
SET status = $1, started_at = $2
WHERE id = $3`
	return r.exec(ctx, query, StatusProcessing, startedAt, id)
}

// SetCachedText memoizes the conversion output.
func (r *PGRepo) SetCachedText(ctx context.Context, id, text string) error {
	const query = `
UPDATE customizations
SET cached_text = $1
WHERE id = $2`
	return r.exec(ctx, query, text, id)
}

// SetCompleted records a successful pipeline run.
func (r *PGRepo) SetCompleted(ctx context.Context, id, resultKey, resultURL string, completedAt time.Time) error {
	const query = `
UPDATE customizations
SET status = $1, result_key = $2, result_url = $3, completed_at = $4,
    error_code = NULL, error_message = NULL
WHERE id = $5`
	return r.exec(ctx, query, StatusCompleted, resultKey, resultURL, completedAt, id)
}

// SetFailed records a failed pipeline run.
func (r *PGRepo) SetFailed(ctx context.Context, id, code, message string, completedAt time.Time) error {
	const query = `
UPDATE customizations
SET status = $1, error_code = $2, error_message = $3, completed_at = $4
WHERE id = $5`
	return r.exec(ctx, query, StatusFailed, code, message, completedAt, id)
}

// ResetForRetry moves a failed record back to pending keeping cached_text.
func (r *PGRepo) ResetForRetry(ctx context.Context, id string) error {
	const query = `
UPDATE customizations
SET status = $1, error_code = NULL, error_message = NULL,
    result_key = NULL, result_url = NULL, started_at = NULL, completed_at = NULL
WHERE id = $2 AND status = $3`
	res, err := r.DB.ExecContext(ctx, query, StatusPending, id, StatusFailed)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotRetryable
	}
	return nil
}

func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) scanOne(row *sql.Row) (Customization, error) {
	c, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customization{}, ErrNotFound
		}
		return Customization{}, err
	}
	return c, nil
}

func scanRecord(scan func(...any) error) (Customization, error) {
	var c Customization
	var cachedText, errorCode, errorMessage, resultKey, resultURL sql.NullString
	var startedAt, completedAt sql.NullTime

	err := scan(
		&c.ID,
		&c.UserID,
		&c.DocumentID,
		&cachedText,
		&c.TargetDescription,
		&c.TargetTitle,
		&c.TargetOrg,
		&c.Status,
		&errorCode,
		&errorMessage,
		&resultKey,
		&resultURL,
		&c.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return Customization{}, err
	}

	c.CachedText = cachedText.String
	c.ErrorCode = errorCode.String
	c.ErrorMessage = errorMessage.String
	c.ResultKey = resultKey.String
	c.ResultURL = resultURL.String
	if startedAt.Valid {
		c.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return c, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
