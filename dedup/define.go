package dedup

import (
	"encoding/binary"

	"github.com/zhengshuai-xiao/DedupScan/internal"
)

var logger = internal.GetLogger("dedupscan")

// FPSize is the byte width of the full chunk fingerprint.
const FPSize = 32

// ChunkFP is the full-width content fingerprint of a chunk.
type ChunkFP [FPSize]byte

// ShortFP is a truncated fingerprint: the first n bytes of the ChunkFP
// packed big-endian into a uint64. Two chunks with equal ChunkFP always have
// equal ShortFP; the converse does not hold, and such a pair is what the
// scan reports as a collision.
type ShortFP uint64

// Short returns the truncation of fp to n bytes, 1 <= n <= 8.
func (fp ChunkFP) Short(n int) ShortFP {
	v := binary.BigEndian.Uint64(fp[:8])
	return ShortFP(v >> uint(64-8*n))
}

// fold compresses the fingerprint to a uint64 identity tag. Unlike Short it
// mixes all fingerprint bytes, so fingerprints sharing a truncation still get
// distinct tags.
func (fp ChunkFP) fold() uint64 {
	return binary.BigEndian.Uint64(fp[0:8]) ^
		binary.BigEndian.Uint64(fp[8:16]) ^
		binary.BigEndian.Uint64(fp[16:24]) ^
		binary.BigEndian.Uint64(fp[24:32])
}

// Chunk is one contiguous byte range of a file, the unit of deduplication.
// The Data slice is owned by the chunk and stays valid after the next call
// to Chunker.Next().
type Chunk struct {
	Data   []byte
	Offset uint64
	Len    uint64
	FP     ChunkFP
	Short  ShortFP
	Check  uint32
}
