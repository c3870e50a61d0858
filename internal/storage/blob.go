package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by BlobStore.Get for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// Object is a stored blob with its content type.
type Object struct {
	Key         string
	ContentType string
	Content     []byte
}

// BlobStore is the object storage backend artifacts are written to.
type BlobStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	// URL returns the backend's own address for key. It is used when no
	// public base URL is configured.
	URL(key string) string
}
