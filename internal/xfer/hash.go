package xfer

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// Algorithm names a content digest.
type Algorithm string

const (
	// HashNone disables hashing.
	HashNone Algorithm = ""
	// HashBLAKE3 is a 256-bit BLAKE3 digest.
	HashBLAKE3 Algorithm = "blake3"
	// HashXXH64 is a 64-bit xxHash digest, for speed over strength.
	HashXXH64 Algorithm = "xxh64"
)

// ParseAlgorithm validates a digest name. "none" and "" disable hashing.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case HashNone, "none":
		return HashNone, nil
	case HashBLAKE3, HashXXH64:
		return Algorithm(s), nil
	default:
		return HashNone, fmt.Errorf("unknown hash %q (want blake3 or xxh64)", s)
	}
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case HashBLAKE3:
		return blake3.New()
	case HashXXH64:
		return xxhash.New()
	default:
		return nil
	}
}

// HashFile computes the digest of the local file at path, hex-encoded.
func HashFile(path string, algo Algorithm) (string, error) {
	h := algo.newHash()
	if h == nil {
		return "", fmt.Errorf("hash %s: no algorithm", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Hash computes the digest of a remote file's content from offset 0 up to
// the bytes available now. The cursor is left at the end.
func Hash(ctx context.Context, src Source, algo Algorithm) (string, error) {
	digest, err := hashRange(ctx, src, algo, math.MaxInt64)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return digest, nil
}
