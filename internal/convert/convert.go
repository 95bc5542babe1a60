package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"tailor-backend/internal/shared/storage/object"
)

// ErrEmptyText indicates a document that parsed cleanly but produced no text.
var ErrEmptyText = errors.New("document produced no text")

// Converter turns a stored document into plain text.
type Converter interface {
	Convert(ctx context.Context, storageKey, format string) (string, error)
}

// PDFConverter extracts plain text from PDF documents fetched from the
// object store. Other formats can be uploaded but not yet converted; they
// are rejected here rather than at upload time.
type PDFConverter struct {
	store object.ObjectStore
}

// NewPDFConverter constructs a converter backed by the given store.
func NewPDFConverter(store object.ObjectStore) *PDFConverter {
	return &PDFConverter{store: store}
}

// Convert fetches the object and extracts its text.
func (c *PDFConverter) Convert(ctx context.Context, storageKey, format string) (string, error) {
	if normalized := strings.ToLower(strings.TrimSpace(format)); normalized != "pdf" {
		return "", fmt.Errorf("format %q is not supported for conversion", format)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := c.store.Open(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("convert key=%s: %w", storageKey, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("convert key=%s: read: %w", storageKey, err)
	}

	text, err := extractPDF(raw)
	if err != nil {
		return "", fmt.Errorf("convert key=%s: %w", storageKey, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var _ Converter = (*PDFConverter)(nil)
