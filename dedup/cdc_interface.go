package dedup

import "io"

// Chunker is an interface that returns the next chunk from a stream.
// The sequence is single-pass: boundaries are monotonically increasing and
// cover the stream with no gaps and no overlaps, and io.EOF marks the end.
type Chunker interface {
	Next() (Chunk, error)
}

// CDC is an interface for creating chunkers from a reader.
type CDC interface {
	NewChunker(r io.Reader) (Chunker, error)
}
