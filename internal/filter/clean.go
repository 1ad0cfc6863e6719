package filter

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/lgulliver/git-lfs-walrus/internal/mapping"
	"github.com/lgulliver/git-lfs-walrus/internal/pointer"
	"github.com/lgulliver/git-lfs-walrus/internal/walrus"
	"github.com/lgulliver/git-lfs-walrus/pkg/utils"
)

// Pipeline converts file bytes to pointers (clean) and back (smudge)
type Pipeline struct {
	blobs    walrus.BlobStore
	mappings mapping.Store
}

// NewPipeline creates a clean/smudge pipeline
func NewPipeline(blobs walrus.BlobStore, mappings mapping.Store) *Pipeline {
	return &Pipeline{blobs: blobs, mappings: mappings}
}

// Clean reads the staged file bytes from r, stores them in Walrus and
// writes the pointer text to w. The blob ID is recorded in the mapping
// under both the content hash and the hash of the emitted pointer text, so
// it stays recoverable whichever of the two a caller later holds. Mapping
// write failures are warnings: the pointer itself embeds the blob ID and
// remains the source of truth.
func (p *Pipeline) Clean(ctx context.Context, r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	contentHash := utils.ComputeSHA256(data)

	blobID, err := p.blobs.StoreBytes(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}

	text := pointer.Encode(contentHash, int64(len(data)), blobID)

	for _, hash := range []string{contentHash, utils.ComputeSHA256([]byte(text))} {
		if err := p.mappings.Put(ctx, hash, blobID); err != nil {
			log.Warn().Err(err).Str("content_hash", hash).Msg("failed to record blob mapping")
			break
		}
	}

	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("failed to write pointer: %w", err)
	}

	log.Info().
		Str("content_hash", contentHash).
		Str("blob_id", blobID).
		Str("size", utils.FormatBytes(int64(len(data)))).
		Msg("file cleaned to pointer")

	return nil
}
