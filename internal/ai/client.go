package ai

import (
	"context"
	"encoding/json"
	"errors"
)

// GenerateInput captures the inputs for one document generation call.
type GenerateInput struct {
	ResumeText     string
	JobDescription string
	TargetTitle    string
	TargetOrg      string
}

// Client abstracts text-generation providers. The raw reply shape is not
// contractually fixed; callers normalize it with Normalize.
type Client interface {
	Generate(ctx context.Context, input GenerateInput) (json.RawMessage, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("generation provider not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Generate returns ErrNotImplemented.
func (PlaceholderClient) Generate(ctx context.Context, input GenerateInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	return nil, ErrNotImplemented
}
