package mapping

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/lgulliver/git-lfs-walrus/internal/gitutil"
	"github.com/lgulliver/git-lfs-walrus/pkg/config"
)

// Default file names under <gitdir>/walrus/ (or the working directory when
// not inside a repository)
const (
	defaultJSONName   = "mapping.json"
	defaultSQLiteName = "mapping.db"
	fallbackJSONName  = "walrus-mapping.json"
	fallbackDBName    = "walrus-mapping.db"
)

// Factory creates mapping stores based on configuration
type Factory struct {
	config *config.MappingConfig
}

// NewFactory creates a new mapping store factory
func NewFactory(config *config.MappingConfig) *Factory {
	return &Factory{config: config}
}

// CreateStore creates a mapping store of the configured type
func (f *Factory) CreateStore(ctx context.Context) (Store, error) {
	switch f.config.Type {
	case "jsonfile", "":
		return NewJSONFileStore(f.resolvePath(ctx, defaultJSONName, fallbackJSONName))
	case "sqlite":
		return NewSQLiteStore(f.resolvePath(ctx, defaultSQLiteName, fallbackDBName))
	case "redis":
		return NewRedisStore(f.config)
	default:
		return nil, fmt.Errorf("unsupported mapping store type: %s", f.config.Type)
	}
}

// resolvePath picks the store location: an explicit configured path wins,
// then <gitdir>/walrus/<name>, then a working-directory fallback when git
// metadata is unavailable.
func (f *Factory) resolvePath(ctx context.Context, name, fallback string) string {
	if f.config.Path != "" {
		return f.config.Path
	}

	gitDir, err := gitutil.GitDir(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("git metadata unavailable, using working-directory mapping file")
		return fallback
	}
	return filepath.Join(gitDir, "walrus", name)
}
