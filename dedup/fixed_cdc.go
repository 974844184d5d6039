package dedup

import (
	"fmt"
	"io"
)

// FixedCDC implements the CDC interface to create fixed-size chunkers.
type FixedCDC struct {
	ChunkSize int
}

// NewChunker creates a new chunker that reads from r and produces fixed-size chunks.
func (f *FixedCDC) NewChunker(r io.Reader) (Chunker, error) {
	if f.ChunkSize <= 0 {
		return nil, fmt.Errorf("fixed chunk size must be positive, got %d", f.ChunkSize)
	}
	return &fixedChunker{
		r:         r,
		chunkSize: f.ChunkSize,
	}, nil
}

// fixedChunker implements the Chunker interface for fixed-size chunking.
type fixedChunker struct {
	r         io.Reader
	chunkSize int
	offset    uint64
}

// Next returns the next fixed-size chunk from the reader. The final chunk
// carries the remainder and may be shorter.
func (c *fixedChunker) Next() (Chunk, error) {
	buf := make([]byte, c.chunkSize)
	n, err := io.ReadFull(c.r, buf)

	if err == io.EOF { // Clean end of stream, no bytes read.
		return Chunk{}, io.EOF
	}
	if err != nil && err != io.ErrUnexpectedEOF { // Some other error occurred.
		return Chunk{}, err
	}

	// Either a full chunk or the last partial one.
	chunk := Chunk{
		Data:   buf[:n],
		Offset: c.offset,
		Len:    uint64(n),
	}
	c.offset += uint64(n)
	return chunk, nil
}
