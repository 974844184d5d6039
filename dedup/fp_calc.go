package dedup

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// DefaultHashAlgo is the algorithm for the full chunk fingerprint.
const DefaultHashAlgo = "SHA3-256"

// GetHasher returns a fresh 256-bit hasher for a supported algorithm name,
// or nil for an unknown one.
func GetHasher(name string) hash.Hash {
	switch name {
	case "SHA3-256":
		return sha3.New256()
	case "SHA256":
		return sha256.New()
	case "BLAKE3":
		return blake3.New()
	default:
		return nil
	}
}

// ChunkHasher computes, for one chunk, the full fingerprint, its truncation
// and a 4-byte SHA-256 check word. The check word comes from a different
// algorithm than the fingerprint, so a truncation collision is essentially
// never mistaken for a duplicate. A ChunkHasher is not safe for concurrent
// use; give each worker its own.
type ChunkHasher struct {
	h        hash.Hash
	shortLen int
	sum      [FPSize]byte
}

// NewChunkHasher returns a ChunkHasher using the named algorithm for the
// full fingerprint and keeping the first shortLen bytes of it as the
// truncated fingerprint.
func NewChunkHasher(algo string, shortLen int) (*ChunkHasher, error) {
	h := GetHasher(algo)
	if h == nil {
		return nil, fmt.Errorf("unknown hash algorithm: %s", algo)
	}
	if shortLen < 1 || shortLen > 8 {
		return nil, fmt.Errorf("short hash length must be in [1, 8] bytes, got %d", shortLen)
	}
	return &ChunkHasher{h: h, shortLen: shortLen}, nil
}

// CalcFP fills in c.FP, c.Short and c.Check from c.Data. The same bytes
// always produce the same triple.
func (ch *ChunkHasher) CalcFP(c *Chunk) {
	ch.h.Reset()
	ch.h.Write(c.Data)
	copy(c.FP[:], ch.h.Sum(ch.sum[:0]))
	c.Short = c.FP.Short(ch.shortLen)

	check := sha256.Sum256(c.Data)
	c.Check = binary.BigEndian.Uint32(check[:4])
}

// CalcFPs hashes a batch of chunks in place.
func (ch *ChunkHasher) CalcFPs(chunks []Chunk) {
	for i := range chunks {
		ch.CalcFP(&chunks[i])
	}
}
