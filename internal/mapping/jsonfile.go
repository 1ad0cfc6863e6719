package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// JSONFileStore is the default mapping backend: one JSON document holding
// the whole index, re-read and rewritten on every Put. Adequate for
// single-writer CLI use; concurrent external writers are not coordinated
// and a crash mid-write can lose the document.
type JSONFileStore struct {
	path  string
	mutex sync.Mutex
}

// NewJSONFileStore creates a mapping store backed by the document at path
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create mapping directory: %w", err)
	}

	log.Debug().Str("path", path).Msg("json mapping store initialized")
	return &JSONFileStore{path: path}, nil
}

// Get returns the blob ID recorded for contentHash, or ErrNotFound
func (s *JSONFileStore) Get(ctx context.Context, contentHash string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}

	blobID, ok := entries[contentHash]
	if !ok {
		return "", ErrNotFound
	}
	return blobID, nil
}

// Put records the blob ID for contentHash with read-merge-write semantics.
// Storing the same content twice replaces the entry, never removes it.
func (s *JSONFileStore) Put(ctx context.Context, contentHash, blobID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[contentHash] = blobID

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mapping document: %w", err)
	}

	if err := os.WriteFile(s.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write mapping document: %w", err)
	}

	log.Debug().
		Str("content_hash", contentHash).
		Str("blob_id", blobID).
		Int("entries", len(entries)).
		Msg("mapping recorded")

	return nil
}

// All returns every recorded mapping
func (s *JSONFileStore) All(ctx context.Context) (map[string]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.load()
}

// Close is a no-op for the file-backed store
func (s *JSONFileStore) Close() error {
	return nil
}

// Path returns the location of the mapping document
func (s *JSONFileStore) Path() string {
	return s.path
}

func (s *JSONFileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read mapping document: %w", err)
	}

	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse mapping document: %w", err)
	}
	return entries, nil
}
