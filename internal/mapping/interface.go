package mapping

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no blob ID is recorded for a content hash
var ErrNotFound = errors.New("no blob mapping for content hash")

// Store persists the content-hash → Walrus blob ID index. The mapping is a
// convenience index, not the source of truth: pointers embed the blob ID
// themselves, so callers may treat Put failures as non-fatal.
type Store interface {
	// Get returns the blob ID recorded for contentHash, or ErrNotFound
	Get(ctx context.Context, contentHash string) (string, error)

	// Put records or replaces the blob ID for contentHash
	Put(ctx context.Context, contentHash, blobID string) error

	// All returns every recorded mapping
	All(ctx context.Context) (map[string]string, error)

	// Close releases any underlying resources
	Close() error
}
