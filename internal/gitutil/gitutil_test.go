package gitutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes into dir for the duration of the test, restoring the
// previous working directory on cleanup (t.Chdir requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Error(err)
		}
	})
}

// setupRepo initializes a repository in a temp dir and chdirs into it
func setupRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	chdir(t, dir)
	mustGit(t, dir, "init")
	mustGit(t, dir, "config", "user.email", "dev@example.com")
	mustGit(t, dir, "config", "user.name", "dev")
	return dir
}

func mustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_GLOBAL="+os.DevNull,
		"GIT_CONFIG_SYSTEM="+os.DevNull,
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestRepoRelative(t *testing.T) {
	dir := setupRepo(t)

	path := filepath.Join(dir, "assets", "model.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	rel, err := RepoRelative(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "assets/model.bin", rel)

	// Relative arguments resolve against the working directory
	rel, err = RepoRelative(context.Background(), filepath.Join("assets", "model.bin"))
	require.NoError(t, err)
	assert.Equal(t, "assets/model.bin", rel)
}

func TestRepoRelative_OutsideRepository(t *testing.T) {
	setupRepo(t)

	_, err := RepoRelative(context.Background(), filepath.Join(os.TempDir(), "elsewhere.bin"))
	assert.Error(t, err)
}

func TestShowHead(t *testing.T) {
	dir := setupRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("committed\n"), 0644))
	mustGit(t, dir, "add", "note.txt")
	mustGit(t, dir, "commit", "-m", "add note")

	content, err := ShowHead(context.Background(), "note.txt")
	require.NoError(t, err)
	assert.Equal(t, "committed\n", content)

	_, err = ShowHead(context.Background(), "absent.txt")
	assert.Error(t, err)
}

func TestConfigUint(t *testing.T) {
	dir := setupRepo(t)
	mustGit(t, dir, "config", "lfs.walrus.defaultepochs", "80")
	mustGit(t, dir, "config", "lfs.walrus.badepochs", "many")

	ctx := context.Background()
	assert.Equal(t, uint64(80), ConfigUint(ctx, "lfs.walrus.defaultepochs", 50))
	assert.Equal(t, uint64(50), ConfigUint(ctx, "lfs.walrus.badepochs", 50))
	assert.Equal(t, uint64(50), ConfigUint(ctx, "lfs.walrus.unset", 50))
}

func TestLFSFiles_OutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	chdir(t, t.TempDir())

	_, err := LFSFiles(context.Background())
	assert.Error(t, err)
}
