package documents

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tailor-backend/internal/shared/storage/object"
	"tailor-backend/internal/shared/telemetry"
	"tailor-backend/internal/shared/util"
)

// Formats accepted at upload time. Conversion currently handles pdf only;
// the other formats are stored for later pipeline support.
var allowedFormats = map[string]struct{}{
	"pdf":  {},
	"doc":  {},
	"docx": {},
}

const sniffLen = 512

// Service contains business logic for documents.
type Service struct {
	Store object.ObjectStore
	Repo  Repo
}

// NewService constructs a Service.
func NewService(store object.ObjectStore, repo Repo) *Service {
	return &Service{Store: store, Repo: repo}
}

// Upload saves the file to object storage and records the document.
func (s *Service) Upload(ctx context.Context, userID, fileName string, r io.Reader) (Document, error) {
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	format := formatFromName(sanitized)
	if _, ok := allowedFormats[format]; !ok {
		return Document{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidInput, format)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Document{}, err
	}
	head = head[:n]
	if len(head) == 0 {
		return Document{}, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	mimeType := http.DetectContentType(head)
	body := io.MultiReader(strings.NewReader(string(head)), r)

	id := uuid.NewString()
	storageKey := path.Join(util.HashUserKey(userID), id+"_"+sanitized)

	_, size, err := s.Store.Upload(ctx, storageKey, mimeType, body)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:         id,
		UserID:     userID,
		FileName:   sanitized,
		Format:     format,
		MimeType:   mimeType,
		SizeBytes:  size,
		StorageKey: storageKey,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		// Keep storage and records consistent on insert failure.
		if delErr := s.Store.Delete(ctx, storageKey); delErr != nil {
			telemetry.Warn("documents.cleanup.failed", map[string]any{
				"storage_key": storageKey,
				"err":         delErr.Error(),
			})
		}
		return Document{}, err
	}

	telemetry.Info("documents.uploaded", map[string]any{
		"document_id": doc.ID,
		"format":      doc.Format,
		"size_bytes":  doc.SizeBytes,
	})
	return doc, nil
}

// Get returns a document by ID scoped to a user.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return Document{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns the user's documents newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func formatFromName(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
