package types

import (
	"time"
)

// HashAlgorithm is the content hash algorithm used for LFS object IDs.
// git-lfs only ever uses sha256.
const HashAlgorithm = "sha256"

// PointerVersionURI is the version line of every LFS pointer
const PointerVersionURI = "https://git-lfs.github.com/spec/v1"

// ContentPointer is the parsed form of an LFS pointer file. ContentHash is
// the SHA-256 digest of the original file bytes and is independent of the
// Walrus blob ID.
type ContentPointer struct {
	HashAlgorithm string `json:"hash_algorithm"`
	ContentHash   string `json:"content_hash"`
	ByteSize      int64  `json:"byte_size"`
	BlobID        string `json:"blob_id,omitempty"`
}

// HasBlobID reports whether the pointer carries a Walrus blob ID
func (p *ContentPointer) HasBlobID() bool {
	return p.BlobID != ""
}

// BlobStatus describes the storage state of a blob as reported by Walrus.
// Epoch semantics are Walrus's concern; the CLI only compares end epochs.
type BlobStatus struct {
	BlobID       string `json:"blob_id"`
	Valid        bool   `json:"valid"`
	EndEpoch     uint64 `json:"end_epoch"`
	CurrentEpoch uint64 `json:"current_epoch"`
}

// Expired reports whether the blob's storage window has already closed
func (s *BlobStatus) Expired() bool {
	return !s.Valid || (s.CurrentEpoch > 0 && s.EndEpoch <= s.CurrentEpoch)
}

// EpochsRemaining returns how many epochs remain before expiry
func (s *BlobStatus) EpochsRemaining() uint64 {
	if s.EndEpoch <= s.CurrentEpoch {
		return 0
	}
	return s.EndEpoch - s.CurrentEpoch
}

// BlobMapping is one content-hash → blob-ID entry as persisted by the
// sqlite mapping store backend
type BlobMapping struct {
	ContentHash string    `json:"content_hash" gorm:"primaryKey;size:64"`
	BlobID      string    `json:"blob_id" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
