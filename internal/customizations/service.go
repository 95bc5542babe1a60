package customizations

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"tailor-backend/internal/ai"
	"tailor-backend/internal/convert"
	"tailor-backend/internal/documents"
	"tailor-backend/internal/jobqueue"
	"tailor-backend/internal/render"
	"tailor-backend/internal/shared/metrics"
	"tailor-backend/internal/shared/storage/object"
	"tailor-backend/internal/shared/telemetry"
	"tailor-backend/internal/shared/util"
)

// JobTypeCustomize is the queue job type handled by ProcessCustomization.
const JobTypeCustomize = "customize"

const resultMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Enqueuer is the slice of the job queue the service needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType, payload string, opts ...jobqueue.Option) (jobqueue.JobHandle, error)
}

// Renderer is the slice of the render pool the service needs.
type Renderer interface {
	Render(ctx context.Context, doc render.Document) ([]byte, error)
}

// Service owns the customization lifecycle: record creation, job submission,
// and the pipeline run executed by the queue worker.
type Service struct {
	Repo      Repo
	DocRepo   documents.Repo
	Store     object.ObjectStore
	Converter convert.Converter
	AI        ai.Client
	Renderer  Renderer
	Queue     Enqueuer
}

// Create records a pending customization and enqueues its pipeline job.
func (s *Service) Create(ctx context.Context, userID, documentID, targetDescription, targetTitle, targetOrg string) (Customization, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(documentID) == "" {
		return Customization{}, errors.New("userID and documentID are required")
	}
	if strings.TrimSpace(targetDescription) == "" {
		return Customization{}, errors.New("jobDescription is required")
	}
	if s.Queue == nil {
		return Customization{}, ErrJobQueueNotConfigured
	}

	if _, err := s.DocRepo.GetByID(ctx, userID, documentID); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return Customization{}, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
		}
		return Customization{}, err
	}

	c := Customization{
		ID:                uuid.NewString(),
		UserID:            userID,
		DocumentID:        documentID,
		TargetDescription: targetDescription,
		TargetTitle:       strings.TrimSpace(targetTitle),
		TargetOrg:         strings.TrimSpace(targetOrg),
		Status:            StatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return Customization{}, err
	}

	if _, err := s.Queue.Enqueue(ctx, JobTypeCustomize, c.ID); err != nil {
		now := time.Now().UTC()
		if failErr := s.Repo.SetFailed(ctx, c.ID, ErrorCodeUnknown, sanitizeError(err), now); failErr != nil {
			telemetry.Error("customization.enqueue.orphaned", map[string]any{
				"customization_id": c.ID,
				"error":            failErr.Error(),
			})
		}
		return Customization{}, fmt.Errorf("enqueue customization %s: %w", c.ID, err)
	}

	telemetry.Info("customization.status", map[string]any{
		"user_id":           c.UserID,
		"document_id":       c.DocumentID,
		"customization_id":  c.ID,
		"status":            StatusPending,
		"status_transition": "created->pending",
	})
	return c, nil
}

// Resubmit resets a failed record to pending and enqueues a fresh job.
// CachedText is kept, so the conversion stage is skipped on the new run.
func (s *Service) Resubmit(ctx context.Context, userID, id string) (Customization, error) {
	if s.Queue == nil {
		return Customization{}, ErrJobQueueNotConfigured
	}

	c, err := s.Repo.GetByIDForUser(ctx, userID, id)
	if err != nil {
		return Customization{}, err
	}
	if c.Status != StatusFailed {
		return Customization{}, ErrNotRetryable
	}

	if err := s.Repo.ResetForRetry(ctx, id); err != nil {
		return Customization{}, err
	}
	if _, err := s.Queue.Enqueue(ctx, JobTypeCustomize, id); err != nil {
		return Customization{}, fmt.Errorf("enqueue customization %s: %w", id, err)
	}

	telemetry.Info("customization.status", map[string]any{
		"user_id":           userID,
		"customization_id":  id,
		"status":            StatusPending,
		"status_transition": "failed->pending",
	})
	return s.Repo.GetByIDForUser(ctx, userID, id)
}

// Get returns a record scoped to a user.
func (s *Service) Get(ctx context.Context, userID, id string) (Customization, error) {
	if strings.TrimSpace(id) == "" {
		return Customization{}, ErrNotFound
	}
	return s.Repo.GetByIDForUser(ctx, userID, id)
}

// List returns the user's records newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Customization, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// ProcessCustomization runs one full pipeline pass for the record. It is the
// queue handler body: a returned error makes the queue apply its retry
// policy, after the failure has already been persisted on the record.
func (s *Service) ProcessCustomization(ctx context.Context, id string) error {
	c, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		// Nothing to mark failed; the queue will retry and exhaust.
		return fmt.Errorf("customization lookup %s: %w", id, err)
	}

	startedAt := time.Now().UTC()
	if err := s.Repo.SetProcessing(ctx, id, startedAt); err != nil {
		return s.fail(ctx, c, stageErr(ErrorCodeStorage, "set processing", err), &startedAt)
	}
	metrics.IncPipelineStarted()
	telemetry.Info("customization.status", map[string]any{
		"user_id":           c.UserID,
		"document_id":       c.DocumentID,
		"customization_id":  c.ID,
		"status":            StatusProcessing,
		"status_transition": "pending->processing",
	})

	text := c.CachedText
	if text == "" {
		text, err = s.convertSource(ctx, c)
		if err != nil {
			return s.fail(ctx, c, err, &startedAt)
		}
		if err := s.Repo.SetCachedText(ctx, id, text); err != nil {
			return s.fail(ctx, c, stageErr(ErrorCodeStorage, "cache text", err), &startedAt)
		}
	}

	raw, err := s.AI.Generate(ctx, ai.GenerateInput{
		ResumeText:     text,
		JobDescription: c.TargetDescription,
		TargetTitle:    c.TargetTitle,
		TargetOrg:      c.TargetOrg,
	})
	if err != nil {
		return s.fail(ctx, c, stageErr(ErrorCodeAIService, "generate", err), &startedAt)
	}

	normalized, err := ai.Normalize(raw)
	if err != nil {
		return s.fail(ctx, c, stageErr(ErrorCodeAIService, "normalize", err), &startedAt)
	}
	if normalized.Source != ai.SourceContent {
		telemetry.Warn("customization.normalize.fallback", map[string]any{
			"customization_id": c.ID,
			"source":           string(normalized.Source),
		})
	}

	rendered, err := s.Renderer.Render(ctx, render.Document{
		Title: c.TargetTitle,
		Text:  normalized.Text,
	})
	if err != nil {
		return s.fail(ctx, c, stageErr(ErrorCodeRender, "render", err), &startedAt)
	}

	resultKey := path.Join("results", util.HashUserKey(c.UserID), uuid.NewString()+".docx")
	resultURL, _, err := s.Store.Upload(ctx, resultKey, resultMimeType, strings.NewReader(string(rendered)))
	if err != nil {
		return s.fail(ctx, c, stageErr(ErrorCodeStorage, "store result", err), &startedAt)
	}

	completedAt := time.Now().UTC()
	if err := s.Repo.SetCompleted(ctx, id, resultKey, resultURL, completedAt); err != nil {
		return s.fail(ctx, c, stageErr(ErrorCodeStorage, "finalize", err), &startedAt)
	}
	metrics.IncPipelineCompleted()
	metrics.ObservePipelineDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("customization.status", map[string]any{
		"user_id":           c.UserID,
		"document_id":       c.DocumentID,
		"customization_id":  c.ID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	return nil
}

// convertSource resolves the document and runs the conversion stage. The
// declared format is gated inside the converter before the engine runs.
func (s *Service) convertSource(ctx context.Context, c Customization) (string, error) {
	doc, err := s.DocRepo.GetByID(ctx, c.UserID, c.DocumentID)
	if err != nil {
		return "", stageErr(ErrorCodeConversion, "resolve document", err)
	}
	text, err := s.Converter.Convert(ctx, doc.StorageKey, doc.Format)
	if err != nil {
		return "", stageErr(ErrorCodeConversion, "convert", err)
	}
	return text, nil
}

// fail persists the failure on the record before rethrowing the pipeline
// error to the queue.
func (s *Service) fail(ctx context.Context, c Customization, err error, startedAt *time.Time) error {
	code, retryable := classifyFailure(err)
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()

	// Persist with a fresh context so a cancelled run still records its
	// outcome.
	if updateErr := s.Repo.SetFailed(context.Background(), c.ID, code, msg, completedAt); updateErr != nil {
		telemetry.Error("customization.fail.persist", map[string]any{
			"customization_id": c.ID,
			"error":            updateErr.Error(),
			"original":         msg,
		})
	}
	metrics.IncPipelineFailed()
	telemetry.Info("customization.status", map[string]any{
		"user_id":           c.UserID,
		"document_id":       c.DocumentID,
		"customization_id":  c.ID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"retryable":         retryable,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
	return err
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}
