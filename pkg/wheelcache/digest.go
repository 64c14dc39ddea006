package wheelcache

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Digest accumulates the inputs of a fingerprint.
//
// Segments are concatenated without separators in exactly the order they are written.
// Callers own the field order and must never write the entries of a map without sorting its keys.
type Digest struct {
	h hash.Hash
}

// NewDigest creates an empty digest
func NewDigest() *Digest {
	return &Digest{h: sha256.New()}
}

// Write adds raw bytes to the digest
func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Tagged adds a "<tag>:<value>" segment
func (d *Digest) Tagged(tag, value string) {
	_, _ = io.WriteString(d.h, tag+":"+value)
}

// Hex returns the hex encoded digest of everything written so far
func (d *Digest) Hex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}
