package walrus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/lgulliver/git-lfs-walrus/pkg/types"
)

// Memory is an in-memory BlobStore used by tests and dry runs. It stores
// and fetches faithfully but invents its own blob IDs, like the real
// backend does.
type Memory struct {
	mutex sync.Mutex
	blobs map[string]memoryBlob

	// Epoch is reported as the current epoch; blobs stored at epoch E
	// expire at E+EpochsAhead
	Epoch       uint64
	EpochsAhead uint64

	// StoreErr / FetchErr, when set, fail the corresponding operations
	StoreErr error
	FetchErr error
}

type memoryBlob struct {
	data     []byte
	endEpoch uint64
}

// NewMemory creates an empty in-memory blob store
func NewMemory() *Memory {
	return &Memory{
		blobs:       map[string]memoryBlob{},
		Epoch:       1,
		EpochsAhead: 50,
	}
}

// Store uploads the file at path and returns a generated blob ID
func (m *Memory) Store(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return m.StoreBytes(ctx, data)
}

// StoreBytes records the bytes under a fresh blob ID
func (m *Memory) StoreBytes(ctx context.Context, data []byte) (string, error) {
	if m.StoreErr != nil {
		return "", m.StoreErr
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	blobID := "mem-" + uuid.NewString()
	m.blobs[blobID] = memoryBlob{
		data:     append([]byte(nil), data...),
		endEpoch: m.Epoch + m.EpochsAhead,
	}
	return blobID, nil
}

// Fetch writes the blob to destPath and returns the byte count
func (m *Memory) Fetch(ctx context.Context, blobID, destPath string) (int64, error) {
	data, err := m.FetchBytes(ctx, blobID)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// FetchBytes returns the stored bytes for blobID
func (m *Memory) FetchBytes(ctx context.Context, blobID string) ([]byte, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	blob, ok := m.blobs[blobID]
	if !ok {
		return nil, fmt.Errorf("blob %s does not exist", blobID)
	}
	return append([]byte(nil), blob.data...), nil
}

// Status reports a stored blob as valid until the end epoch fixed when it
// was stored
func (m *Memory) Status(ctx context.Context, blobID string) (types.BlobStatus, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	blob, ok := m.blobs[blobID]
	status := types.BlobStatus{BlobID: blobID, Valid: ok}
	if ok {
		status.EndEpoch = blob.endEpoch
	}
	return status, nil
}

// CurrentEpoch reports the configured epoch
func (m *Memory) CurrentEpoch(ctx context.Context) (uint64, error) {
	return m.Epoch, nil
}

// Len returns the number of stored blobs
func (m *Memory) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.blobs)
}
