package walrus

import (
	"context"

	"github.com/lgulliver/git-lfs-walrus/pkg/types"
)

// BlobStore is the capability the rest of the CLI programs against. The
// production implementation shells out to the walrus CLI; tests inject
// Memory.
type BlobStore interface {
	// Store uploads the file at path and returns the Walrus blob ID
	Store(ctx context.Context, path string) (string, error)

	// StoreBytes uploads raw bytes and returns the Walrus blob ID
	StoreBytes(ctx context.Context, data []byte) (string, error)

	// Fetch downloads a blob to destPath and returns the byte count
	Fetch(ctx context.Context, blobID, destPath string) (int64, error)

	// FetchBytes downloads a blob into memory
	FetchBytes(ctx context.Context, blobID string) ([]byte, error)

	// Status reports the storage state of a blob
	Status(ctx context.Context, blobID string) (types.BlobStatus, error)

	// CurrentEpoch reports the storage epoch Walrus is currently in
	CurrentEpoch(ctx context.Context) (uint64, error)
}
