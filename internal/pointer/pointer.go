package pointer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lgulliver/git-lfs-walrus/pkg/types"
)

// ExtensionKey is the pointer line carrying the Walrus blob ID. git-lfs
// extension lines are "ext-<priority>-<name>".
const ExtensionKey = "ext-0-walrus"

// legacyBlobIDPrefix is the comment form older releases wrote instead of a
// proper extension line. Decode still honors it.
const legacyBlobIDPrefix = "# walrus-blob-id:"

const oidPrefix = types.HashAlgorithm + ":"

// ErrMissingOID is returned when pointer text has no oid line
var ErrMissingOID = errors.New("pointer has no oid line")

// Encode renders a pointer in the canonical four-line layout. The blob ID
// line is omitted when blobID is empty.
func Encode(contentHash string, size int64, blobID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "version %s\n", types.PointerVersionURI)
	fmt.Fprintf(&b, "oid %s%s\n", oidPrefix, contentHash)
	fmt.Fprintf(&b, "size %d\n", size)
	if blobID != "" {
		fmt.Fprintf(&b, "%s %s\n", ExtensionKey, blobID)
	}
	return b.String()
}

// Decode parses pointer text into a ContentPointer. Decoding is line
// oriented and forward compatible: comment lines are skipped, unknown keys
// (including foreign ext-N-* lines) are ignored, and line order does not
// matter. The only hard requirement is the oid line.
func Decode(text string) (*types.ContentPointer, error) {
	p := &types.ContentPointer{HashAlgorithm: types.HashAlgorithm}
	found := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if rest, ok := strings.CutPrefix(line, legacyBlobIDPrefix); ok && p.BlobID == "" {
				p.BlobID = strings.TrimSpace(rest)
			}
			continue
		}

		key, value, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}

		switch key {
		case "oid":
			hash, isSHA := strings.CutPrefix(value, oidPrefix)
			if !isSHA {
				return nil, fmt.Errorf("unsupported oid algorithm in %q", value)
			}
			p.ContentHash = hash
			found = true
		case "size":
			size, err := strconv.ParseInt(value, 10, 64)
			if err != nil || size < 0 {
				return nil, fmt.Errorf("invalid size line %q", line)
			}
			p.ByteSize = size
		case ExtensionKey:
			p.BlobID = value
		}
	}

	if !found {
		return nil, ErrMissingOID
	}
	return p, nil
}
