package filter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/lgulliver/git-lfs-walrus/internal/mapping"
	"github.com/lgulliver/git-lfs-walrus/internal/pointer"
	"github.com/lgulliver/git-lfs-walrus/pkg/utils"
)

// ErrNoBlobID is returned when a pointer carries no Walrus blob ID and the
// mapping store has none for its content hash either
var ErrNoBlobID = errors.New("pointer has no walrus blob ID")

// Smudge reads pointer text from r and writes the original file bytes to
// w. The blob ID comes from the pointer's extension line (or the legacy
// comment), falling back to a mapping lookup by content hash; if neither
// source knows it, the failure is a typed not-found, distinct from I/O
// errors. Fetched bytes are verified against the pointer's content hash.
func (p *Pipeline) Smudge(ctx context.Context, r io.Reader, w io.Writer) error {
	text, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read pointer: %w", err)
	}

	ptr, err := pointer.Decode(string(text))
	if err != nil {
		return fmt.Errorf("failed to decode pointer: %w", err)
	}

	blobID := ptr.BlobID
	if blobID == "" {
		blobID, err = p.mappings.Get(ctx, ptr.ContentHash)
		if errors.Is(err, mapping.ErrNotFound) {
			return fmt.Errorf("%w (oid %s)", ErrNoBlobID, ptr.ContentHash)
		}
		if err != nil {
			return fmt.Errorf("failed to resolve blob ID: %w", err)
		}
	}

	data, err := p.blobs.FetchBytes(ctx, blobID)
	if err != nil {
		return fmt.Errorf("failed to fetch blob %s: %w", blobID, err)
	}

	if got := utils.ComputeSHA256(data); got != ptr.ContentHash {
		return fmt.Errorf("blob %s content hash mismatch: pointer says %s, fetched %s",
			blobID, ptr.ContentHash, got)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write file content: %w", err)
	}

	log.Info().
		Str("content_hash", ptr.ContentHash).
		Str("blob_id", blobID).
		Str("size", utils.FormatBytes(int64(len(data)))).
		Msg("pointer smudged to file")

	return nil
}
