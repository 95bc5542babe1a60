package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
// Keys are caller-supplied; implementations must reject traversal attempts.
type ObjectStore interface {
	Upload(ctx context.Context, storageKey string, contentType string, r io.Reader) (url string, sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}
