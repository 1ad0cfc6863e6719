package pointer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgulliver/git-lfs-walrus/pkg/utils"
)

const helloHash = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestEncode(t *testing.T) {
	text := Encode(helloHash, 11, "walrus-blob-123")

	expected := "version https://git-lfs.github.com/spec/v1\n" +
		"oid sha256:" + helloHash + "\n" +
		"size 11\n" +
		"ext-0-walrus walrus-blob-123\n"
	assert.Equal(t, expected, text)
}

func TestEncode_WithoutBlobID(t *testing.T) {
	text := Encode(helloHash, 11, "")

	assert.NotContains(t, text, "ext-0-walrus")
	assert.Contains(t, text, "oid sha256:"+helloHash)
	assert.Contains(t, text, "size 11")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		expectedHash string
		expectedSize int64
		expectedID   string
		shouldError  bool
	}{
		{
			name:         "canonical pointer",
			text:         Encode(helloHash, 11, "walrus-blob-123"),
			expectedHash: helloHash,
			expectedSize: 11,
			expectedID:   "walrus-blob-123",
		},
		{
			name: "lines in non-canonical order",
			text: "size 11\next-0-walrus walrus-blob-123\nversion https://git-lfs.github.com/spec/v1\noid sha256:" + helloHash + "\n",

			expectedHash: helloHash,
			expectedSize: 11,
			expectedID:   "walrus-blob-123",
		},
		{
			name: "unknown extension lines ignored",
			text: "version https://git-lfs.github.com/spec/v1\n" +
				"oid sha256:" + helloHash + "\n" +
				"size 11\n" +
				"ext-1-lzma compressed\n" +
				"ext-0-walrus walrus-blob-123\n" +
				"x-custom whatever\n",
			expectedHash: helloHash,
			expectedSize: 11,
			expectedID:   "walrus-blob-123",
		},
		{
			name: "legacy comment blob id",
			text: "version https://git-lfs.github.com/spec/v1\n" +
				"oid sha256:" + helloHash + "\n" +
				"size 11\n" +
				"# walrus-blob-id: legacy-blob-456\n",
			expectedHash: helloHash,
			expectedSize: 11,
			expectedID:   "legacy-blob-456",
		},
		{
			name: "extension wins over legacy comment",
			text: "version https://git-lfs.github.com/spec/v1\n" +
				"oid sha256:" + helloHash + "\n" +
				"size 11\n" +
				"# walrus-blob-id: legacy-blob-456\n" +
				"ext-0-walrus walrus-blob-123\n",
			expectedHash: helloHash,
			expectedSize: 11,
			expectedID:   "walrus-blob-123",
		},
		{
			name: "comments and blank lines skipped",
			text: "# generated by git-lfs-walrus\n\noid sha256:" + helloHash + "\n\nsize 11\n",

			expectedHash: helloHash,
			expectedSize: 11,
		},
		{
			name: "no blob id at all",
			text: "version https://git-lfs.github.com/spec/v1\noid sha256:" + helloHash + "\nsize 11\n",

			expectedHash: helloHash,
			expectedSize: 11,
		},
		{
			name:        "missing oid line",
			text:        "version https://git-lfs.github.com/spec/v1\nsize 11\n",
			shouldError: true,
		},
		{
			name:        "unsupported oid algorithm",
			text:        "oid md5:d41d8cd98f00b204e9800998ecf8427e\nsize 11\n",
			shouldError: true,
		},
		{
			name:        "malformed size",
			text:        "oid sha256:" + helloHash + "\nsize eleven\n",
			shouldError: true,
		},
		{
			name:        "negative size",
			text:        "oid sha256:" + helloHash + "\nsize -1\n",
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.text)

			if tt.shouldError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "sha256", p.HashAlgorithm)
			assert.Equal(t, tt.expectedHash, p.ContentHash)
			assert.Equal(t, tt.expectedSize, p.ByteSize)
			assert.Equal(t, tt.expectedID, p.BlobID)
			assert.Equal(t, tt.expectedID != "", p.HasBlobID())
		})
	}
}

func TestDecode_MissingOIDSentinel(t *testing.T) {
	_, err := Decode("size 11\n")
	assert.ErrorIs(t, err, ErrMissingOID)
}

func TestRoundTrip(t *testing.T) {
	// decode(encode(hash(b), size(b), id)).ContentHash == hash(b)
	inputs := [][]byte{
		[]byte("hello world"),
		{},
		{0x00, 0x01, 0xFF},
		[]byte(strings.Repeat("large content ", 1000)),
	}

	for _, b := range inputs {
		hash := utils.ComputeSHA256(b)
		p, err := Decode(Encode(hash, int64(len(b)), "blob-id"))
		require.NoError(t, err)
		assert.Equal(t, hash, p.ContentHash)
		assert.Equal(t, int64(len(b)), p.ByteSize)
		assert.Equal(t, "blob-id", p.BlobID)
	}
}
