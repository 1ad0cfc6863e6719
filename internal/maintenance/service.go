package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/lgulliver/git-lfs-walrus/internal/gitutil"
	"github.com/lgulliver/git-lfs-walrus/internal/mapping"
	"github.com/lgulliver/git-lfs-walrus/internal/pointer"
	"github.com/lgulliver/git-lfs-walrus/internal/walrus"
	"github.com/lgulliver/git-lfs-walrus/pkg/utils"
)

// Service implements the maintenance commands: check, refresh and blob-id.
// They consult the mapping store and the blob store's status surface;
// human-readable results go to out.
type Service struct {
	blobs    walrus.BlobStore
	mappings mapping.Store
	out      io.Writer

	// listTracked enumerates the repository's lfs-tracked files; swapped
	// out in tests
	listTracked func(ctx context.Context) ([]string, error)
}

// NewService creates a maintenance service writing reports to out
func NewService(blobs walrus.BlobStore, mappings mapping.Store, out io.Writer) *Service {
	return &Service{
		blobs:       blobs,
		mappings:    mappings,
		out:         out,
		listTracked: gitutil.LFSFiles,
	}
}

// target is one blob to inspect: a display label, its content hash, and
// the blob ID when already known from a pointer
type target struct {
	label       string
	contentHash string
	blobID      string
}

// Check reports the expiry status of the named files, or of every mapping
// entry when no files are given
func (s *Service) Check(ctx context.Context, files []string) error {
	targets, err := s.resolveTargets(ctx, files)
	if err != nil {
		return err
	}

	currentEpoch, err := s.blobs.CurrentEpoch(ctx)
	if err != nil {
		return fmt.Errorf("failed to query current epoch: %w", err)
	}

	expired := 0
	for _, tgt := range targets {
		blobID, err := s.blobIDFor(ctx, tgt)
		if errors.Is(err, mapping.ErrNotFound) {
			fmt.Fprintf(s.out, "%s: no walrus blob mapping\n", tgt.label)
			continue
		}
		if err != nil {
			return err
		}

		status, err := s.blobs.Status(ctx, blobID)
		if err != nil {
			return fmt.Errorf("failed to query status of %s: %w", blobID, err)
		}
		status.CurrentEpoch = currentEpoch

		switch {
		case status.Expired():
			expired++
			fmt.Fprintf(s.out, "%s: EXPIRED (blob %s)\n", tgt.label, blobID)
		default:
			fmt.Fprintf(s.out, "%s: ok, %d epochs remaining (blob %s)\n",
				tgt.label, status.EpochsRemaining(), blobID)
		}
	}

	fmt.Fprintf(s.out, "checked %d blobs, %d expired\n", len(targets), expired)
	return nil
}

// Refresh re-stores expired blobs so they get a fresh storage window. With
// explicit files the working-tree bytes are re-stored unconditionally;
// without, every expired tracked file or mapping entry is fetched and
// stored again.
func (s *Service) Refresh(ctx context.Context, files []string) error {
	if len(files) > 0 {
		for _, file := range files {
			if err := s.refreshFile(ctx, file); err != nil {
				return err
			}
		}
		return nil
	}

	targets, err := s.resolveTargets(ctx, nil)
	if err != nil {
		return err
	}

	currentEpoch, err := s.blobs.CurrentEpoch(ctx)
	if err != nil {
		return fmt.Errorf("failed to query current epoch: %w", err)
	}

	refreshed := 0
	for _, tgt := range targets {
		blobID, err := s.blobIDFor(ctx, tgt)
		if errors.Is(err, mapping.ErrNotFound) {
			fmt.Fprintf(s.out, "%s: no walrus blob mapping\n", tgt.label)
			continue
		}
		if err != nil {
			return err
		}

		status, err := s.blobs.Status(ctx, blobID)
		if err != nil {
			return fmt.Errorf("failed to query status of %s: %w", blobID, err)
		}
		status.CurrentEpoch = currentEpoch
		if !status.Expired() {
			continue
		}

		data, err := s.blobs.FetchBytes(ctx, blobID)
		if err != nil {
			// An expired blob may be unrecoverable; report and move on
			log.Warn().Err(err).Str("blob_id", blobID).Msg("cannot fetch expired blob")
			fmt.Fprintf(s.out, "%s: UNRECOVERABLE (blob %s)\n", tgt.label, blobID)
			continue
		}

		newID, err := s.blobs.StoreBytes(ctx, data)
		if err != nil {
			return fmt.Errorf("failed to re-store blob %s: %w", blobID, err)
		}
		if err := s.mappings.Put(ctx, tgt.contentHash, newID); err != nil {
			log.Warn().Err(err).Str("content_hash", tgt.contentHash).Msg("failed to update blob mapping")
		}

		refreshed++
		fmt.Fprintf(s.out, "%s: refreshed %s -> %s\n", tgt.label, blobID, newID)
	}

	fmt.Fprintf(s.out, "refreshed %d blobs\n", refreshed)
	return nil
}

// BlobID prints the Walrus blob ID recorded for one file
func (s *Service) BlobID(ctx context.Context, file string) error {
	tgt, err := s.resolveFile(ctx, file)
	if err != nil {
		return err
	}

	blobID, err := s.blobIDFor(ctx, tgt)
	if errors.Is(err, mapping.ErrNotFound) {
		fmt.Fprintf(s.out, "File: %s\nSHA256: %s\nNo walrus blob ID recorded for this file\n",
			file, tgt.contentHash)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "File: %s\nSHA256: %s\nWalrus Blob ID: %s\n", file, tgt.contentHash, blobID)
	return nil
}

func (s *Service) refreshFile(ctx context.Context, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	contentHash := utils.ComputeSHA256(data)
	blobID, err := s.blobs.StoreBytes(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to re-store %s: %w", file, err)
	}
	if err := s.mappings.Put(ctx, contentHash, blobID); err != nil {
		log.Warn().Err(err).Str("content_hash", contentHash).Msg("failed to update blob mapping")
	}

	fmt.Fprintf(s.out, "%s: refreshed as blob %s\n", file, blobID)
	return nil
}

// blobIDFor resolves a target's blob ID, preferring the one embedded in
// its pointer over the mapping store
func (s *Service) blobIDFor(ctx context.Context, tgt target) (string, error) {
	if tgt.blobID != "" {
		return tgt.blobID, nil
	}
	return s.mappings.Get(ctx, tgt.contentHash)
}

// resolveTargets turns the file arguments into inspection targets. With no
// files it enumerates the repository's lfs-tracked files, or the whole
// mapping store outside a repository.
func (s *Service) resolveTargets(ctx context.Context, files []string) ([]target, error) {
	if len(files) == 0 {
		if tracked, err := s.listTracked(ctx); err == nil && len(tracked) > 0 {
			files = tracked
		}
	}

	if len(files) == 0 {
		entries, err := s.mappings.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list mappings: %w", err)
		}

		targets := make([]target, 0, len(entries))
		for contentHash, blobID := range entries {
			targets = append(targets, target{label: contentHash, contentHash: contentHash, blobID: blobID})
		}
		return targets, nil
	}

	targets := make([]target, 0, len(files))
	for _, file := range files {
		tgt, err := s.resolveFile(ctx, file)
		if err != nil {
			return nil, err
		}
		targets = append(targets, tgt)
	}
	return targets, nil
}

// resolveFile finds a file's content hash: from its committed pointer when
// the file is under git, otherwise by hashing the working-tree bytes
func (s *Service) resolveFile(ctx context.Context, file string) (target, error) {
	if repoPath, err := gitutil.RepoRelative(ctx, file); err == nil {
		if content, err := gitutil.ShowHead(ctx, repoPath); err == nil {
			if ptr, err := pointer.Decode(content); err == nil {
				return target{label: file, contentHash: ptr.ContentHash, blobID: ptr.BlobID}, nil
			}
		}
	}

	f, err := os.Open(file)
	if err != nil {
		return target{}, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	hash, err := utils.ComputeSHA256FromReader(f)
	if err != nil {
		return target{}, fmt.Errorf("failed to hash %s: %w", file, err)
	}
	return target{label: file, contentHash: hash}, nil
}
