package mapping

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mapping.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_PutGet(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testHash, testBlobID))

	blobID, err := store.Get(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, testBlobID, blobID)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := setupSQLiteStore(t)

	_, err := store.Get(context.Background(), testHash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_PutUpserts(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testHash, testBlobID))
	require.NoError(t, store.Put(ctx, testHash, "walrus-blob-456"))

	blobID, err := store.Get(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, "walrus-blob-456", blobID)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_All(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testHash, testBlobID))
	require.NoError(t, store.Put(ctx, "aa"+testHash[2:], "other-blob"))

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		testHash:            testBlobID,
		"aa" + testHash[2:]: "other-blob",
	}, all)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, testHash, testBlobID))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	blobID, err := reopened.Get(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, testBlobID, blobID)
}
