package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving binary objects.
// Keys are slash-separated relative paths; batch scratch areas and category
// buckets are plain key prefixes.
type ObjectStore interface {
	Save(ctx context.Context, prefix string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
	List(ctx context.Context, prefix string) ([]string, error)
}
