package media

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
	Updated     time.Time
}

// ObjectStore is the blob storage holding listing media.
type ObjectStore interface {
	// List returns every object under prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// SignRead returns a time-limited download URL.
	SignRead(ctx context.Context, key string, ttl time.Duration) (string, error)

	// SignWrite returns a time-limited URL accepting a PUT with the given content type.
	SignWrite(ctx context.Context, key string, ttl time.Duration, contentType string) (string, error)

	// Put stores the reader's content under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Delete removes key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// UpdateFunc receives the current manifest (empty when the document does not
// exist) and returns the manifest to write, or nil to leave the store untouched.
type UpdateFunc func(current *Manifest, exists bool) (*Manifest, error)

// ManifestStore persists one manifest per listing.
type ManifestStore interface {
	// Get returns ErrNotFound when the listing has no document.
	Get(ctx context.Context, slug string) (*Manifest, error)

	// Put merges the manifest fields into the listing document and returns the
	// stored version.
	Put(ctx context.Context, slug string, m *Manifest, editor Editor) (int64, error)

	// Update runs a transactional read-modify-write. The store assigns the
	// next version to the written manifest and returns it.
	Update(ctx context.Context, slug string, editor Editor, fn UpdateFunc) (*Manifest, error)
}
