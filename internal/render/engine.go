package render

import (
	"context"
	"errors"
)

// Document is the input to a render: the tailored resume text plus a title
// used for the document properties.
type Document struct {
	Title string
	Text  string
}

// Engine renders a document into DOCX bytes. Engines are not required to be
// safe for concurrent use; the pool serializes access to each instance.
type Engine interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
	Close() error
}

// ErrNotStarted is returned when Render is called before Start.
var ErrNotStarted = errors.New("renderer not started")

// ErrEmptyDocument is returned for documents with no text.
var ErrEmptyDocument = errors.New("empty document")
