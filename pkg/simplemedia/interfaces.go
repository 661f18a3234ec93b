package simplemedia

import (
	"context"
	"io"
)

// BlobStore defines the interface for storage backends. Keys are
// slash-separated "<folder>/<file>" values produced by the path resolver.
type BlobStore interface {
	// Put stores the content of r under key and returns the stored size
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)

	// Delete removes key. It returns an error wrapping ErrObjectNotFound
	// when the backend can tell the key was absent.
	Delete(ctx context.Context, key string) error
}

// StatsSource computes storage statistics
type StatsSource interface {
	Aggregate(ctx context.Context) (*Snapshot, error)
}
