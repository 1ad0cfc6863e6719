package filter

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgulliver/git-lfs-walrus/internal/mapping"
	"github.com/lgulliver/git-lfs-walrus/internal/pointer"
	"github.com/lgulliver/git-lfs-walrus/internal/walrus"
	"github.com/lgulliver/git-lfs-walrus/pkg/utils"
)

const helloHash = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

type pipelineFixture struct {
	pipeline *Pipeline
	blobs    *walrus.Memory
	mappings mapping.Store
}

func setupPipeline(t *testing.T) *pipelineFixture {
	mappings, err := mapping.NewJSONFileStore(filepath.Join(t.TempDir(), "mapping.json"))
	require.NoError(t, err)

	blobs := walrus.NewMemory()
	return &pipelineFixture{
		pipeline: NewPipeline(blobs, mappings),
		blobs:    blobs,
		mappings: mappings,
	}
}

func TestClean_HelloWorld(t *testing.T) {
	f := setupPipeline(t)

	var out bytes.Buffer
	err := f.pipeline.Clean(context.Background(), strings.NewReader("hello world"), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "version https://git-lfs.github.com/spec/v1")
	assert.Contains(t, text, "oid sha256:"+helloHash)
	assert.Contains(t, text, "size 11")
	assert.Contains(t, text, "ext-0-walrus ")
	assert.Equal(t, 1, f.blobs.Len())
}

func TestClean_RecordsBothMappings(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, f.pipeline.Clean(ctx, strings.NewReader("hello world"), &out))

	// Recoverable by original-content hash
	byContent, err := f.mappings.Get(ctx, helloHash)
	require.NoError(t, err)

	// ...and by the hash of the pointer text itself
	byPointer, err := f.mappings.Get(ctx, utils.ComputeSHA256(out.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, byContent, byPointer)
	assert.NotEmpty(t, byContent)
}

func TestClean_MappingFailureIsNonFatal(t *testing.T) {
	// A read-only mapping document must not block the pointer
	blobs := walrus.NewMemory()
	pipeline := NewPipeline(blobs, failingStore{})

	var out bytes.Buffer
	err := pipeline.Clean(context.Background(), strings.NewReader("hello world"), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "oid sha256:"+helloHash)
}

func TestClean_StoreFailureIsFatal(t *testing.T) {
	f := setupPipeline(t)
	f.blobs.StoreErr = errors.New("walrus unreachable")

	var out bytes.Buffer
	err := f.pipeline.Clean(context.Background(), strings.NewReader("hello world"), &out)

	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestSmudge_RoundTrip(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	inputs := [][]byte{
		[]byte("hello world"),
		{},
		{0x00, 0x01, 0xFF, 0xFE},
		bytes.Repeat([]byte("large payload "), 4096),
	}

	for _, input := range inputs {
		var pointerText, restored bytes.Buffer
		require.NoError(t, f.pipeline.Clean(ctx, bytes.NewReader(input), &pointerText))
		require.NoError(t, f.pipeline.Smudge(ctx, &pointerText, &restored))
		assert.Equal(t, string(input), restored.String())
	}
}

func TestSmudge_LegacyCommentPointer(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	blobID, err := f.blobs.StoreBytes(ctx, []byte("hello world"))
	require.NoError(t, err)

	text := "version https://git-lfs.github.com/spec/v1\n" +
		"oid sha256:" + helloHash + "\n" +
		"size 11\n" +
		"# walrus-blob-id: " + blobID + "\n"

	var out bytes.Buffer
	require.NoError(t, f.pipeline.Smudge(ctx, strings.NewReader(text), &out))
	assert.Equal(t, "hello world", out.String())
}

func TestSmudge_FallsBackToMapping(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	blobID, err := f.blobs.StoreBytes(ctx, []byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, f.mappings.Put(ctx, helloHash, blobID))

	// Pointer without any blob ID extension
	text := pointer.Encode(helloHash, 11, "")

	var out bytes.Buffer
	require.NoError(t, f.pipeline.Smudge(ctx, strings.NewReader(text), &out))
	assert.Equal(t, "hello world", out.String())
}

func TestSmudge_NoBlobIDAnywhere(t *testing.T) {
	f := setupPipeline(t)

	text := pointer.Encode(helloHash, 11, "")

	var out bytes.Buffer
	err := f.pipeline.Smudge(context.Background(), strings.NewReader(text), &out)

	assert.ErrorIs(t, err, ErrNoBlobID)
	assert.Empty(t, out.String())
}

func TestSmudge_HashMismatchRejected(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	blobID, err := f.blobs.StoreBytes(ctx, []byte("tampered content"))
	require.NoError(t, err)

	text := pointer.Encode(helloHash, 11, blobID)

	var out bytes.Buffer
	err = f.pipeline.Smudge(ctx, strings.NewReader(text), &out)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "content hash mismatch")
}

func TestSmudge_InvalidPointer(t *testing.T) {
	f := setupPipeline(t)

	var out bytes.Buffer
	err := f.pipeline.Smudge(context.Background(), strings.NewReader("size 11\n"), &out)
	assert.Error(t, err)
}

// failingStore fails every mapping operation
type failingStore struct{}

func (failingStore) Get(ctx context.Context, contentHash string) (string, error) {
	return "", errors.New("mapping store unavailable")
}

func (failingStore) Put(ctx context.Context, contentHash, blobID string) error {
	return errors.New("mapping store unavailable")
}

func (failingStore) All(ctx context.Context) (map[string]string, error) {
	return nil, errors.New("mapping store unavailable")
}

func (failingStore) Close() error { return nil }
