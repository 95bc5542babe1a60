package customizations

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound              = errors.New("customization not found")
	ErrNotRetryable          = errors.New("customization is not in a failed state")
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
)

const (
	ErrorCodeConversion = "CONVERSION_ERROR"
	ErrorCodeAIService  = "AI_SERVICE_ERROR"
	ErrorCodeRender     = "RENDER_ERROR"
	ErrorCodeStorage    = "STORAGE_ERROR"
	ErrorCodeNotFound   = "NOT_FOUND"
	ErrorCodeUnknown    = "UNKNOWN_ERROR"
)

// StageError tags a pipeline failure with the stage that produced it and the
// error code persisted on the record.
type StageError struct {
	Code  string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(code, stage string, err error) error {
	return &StageError{Code: code, Stage: stage, Err: err}
}

// classifyFailure maps an arbitrary pipeline error to a persisted error code
// and whether a retry could plausibly change the outcome.
func classifyFailure(err error) (string, bool) {
	if err == nil {
		return ErrorCodeUnknown, false
	}
	var stage *StageError
	if errors.As(err, &stage) {
		switch stage.Code {
		case ErrorCodeConversion:
			return stage.Code, false
		case ErrorCodeAIService, ErrorCodeStorage:
			return stage.Code, true
		default:
			return stage.Code, false
		}
	}
	if errors.Is(err, ErrNotFound) {
		return ErrorCodeNotFound, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeAIService, true
	}
	return ErrorCodeUnknown, false
}

// sanitizeError flattens an error into a single line capped at 500 chars so
// it is safe to persist and to return to pollers.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
