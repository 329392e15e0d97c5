package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Digest identifies the bytes of a catalog export.
type Digest struct {
	SHA256 string
	Size   int64
}

func (d Digest) String() string {
	return fmt.Sprintf("sha256:%s (%d bytes)", d.SHA256, d.Size)
}

// Short is the first 12 hex digits, enough to compare two exports by eye.
func (d Digest) Short() string {
	if len(d.SHA256) < 12 {
		return d.SHA256
	}
	return d.SHA256[:12]
}

// FileDigest hashes the file at path.
func FileDigest(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	defer f.Close()
	return ReaderDigest(f)
}

// ReaderDigest hashes everything read from r.
func ReaderDigest(r io.Reader) (Digest, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, err
	}
	return Digest{SHA256: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}
