package mapping

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/lgulliver/git-lfs-walrus/pkg/types"
)

// SQLiteStore keeps the mapping in an embedded sqlite database. Unlike the
// JSON document, inserts are transactional, so it survives concurrent
// invocations and crash-mid-write.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (and migrates) the sqlite mapping database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping database: %w", err)
	}

	if err := db.AutoMigrate(&types.BlobMapping{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mapping database: %w", err)
	}

	log.Debug().Str("path", path).Msg("sqlite mapping store initialized")
	return &SQLiteStore{db: db}, nil
}

// Get returns the blob ID recorded for contentHash, or ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, contentHash string) (string, error) {
	var entry types.BlobMapping
	err := s.db.WithContext(ctx).First(&entry, "content_hash = ?", contentHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query mapping: %w", err)
	}
	return entry.BlobID, nil
}

// Put upserts the blob ID for contentHash
func (s *SQLiteStore) Put(ctx context.Context, contentHash, blobID string) error {
	entry := types.BlobMapping{ContentHash: contentHash, BlobID: blobID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"blob_id", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert mapping: %w", err)
	}
	return nil
}

// All returns every recorded mapping
func (s *SQLiteStore) All(ctx context.Context) (map[string]string, error) {
	var entries []types.BlobMapping
	if err := s.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.ContentHash] = e.BlobID
	}
	return out, nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
