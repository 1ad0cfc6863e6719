package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// GitDir returns the absolute path of the repository's .git directory.
// Fails when the working directory is not inside a git repository.
func GitDir(ctx context.Context) (string, error) {
	out, err := run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ConfigValue reads a git config value, returning "" when the key is unset
func ConfigValue(ctx context.Context, key string) string {
	out, err := run(ctx, "config", "--get", key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// ConfigUint reads a git config value as an unsigned integer, falling back
// to def when the key is unset or malformed
func ConfigUint(ctx context.Context, key string, def uint64) uint64 {
	raw := ConfigValue(ctx, key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("ignoring malformed git config value")
		return def
	}
	return v
}

// RepoRelative converts path into the repository-relative, slash-separated
// form git object names expect. Fails outside a repository or when the
// path does not live under the repository root.
func RepoRelative(ctx context.Context, path string) (string, error) {
	out, err := run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	top := strings.TrimSpace(out)
	if resolved, err := filepath.EvalSymlinks(top); err == nil {
		top = resolved
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	rel, err := filepath.Rel(top, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the repository", path)
	}
	return filepath.ToSlash(rel), nil
}

// ShowHead returns the committed content of path at HEAD. The path must be
// repository-relative, see RepoRelative.
func ShowHead(ctx context.Context, path string) (string, error) {
	out, err := run(ctx, "show", "HEAD:"+path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s at HEAD: %w", path, err)
	}
	return out, nil
}

// LFSFiles lists the working-tree paths currently tracked by git-lfs
func LFSFiles(ctx context.Context) ([]string, error) {
	out, err := run(ctx, "lfs", "ls-files", "--name-only")
	if err != nil {
		return nil, fmt.Errorf("failed to list lfs files: %w", err)
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
