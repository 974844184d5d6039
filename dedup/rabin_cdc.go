package dedup

import (
	"fmt"
	"io"

	"github.com/zhengshuai-xiao/DedupScan/pkg/rabin"
)

// RabinCDC implements the CDC interface with a two-divisor content-defined
// chunking scheme over a Rabin rolling hash. A cut is placed where the low
// MaskBits bits of the fingerprint are all ones (the primary divisor); if no
// primary cut shows up before MaxChunkSize, the last position matching one
// bit fewer (the secondary divisor) is used, and failing that the chunk is
// forced to MaxChunkSize. Identical data always cuts in the same places.
type RabinCDC struct {
	MinChunkSize int
	MaxChunkSize int
	MaskBits     int
	Polynomial   uint64
	WindowSize   int
}

// NewChunker creates a new chunker that reads from r and produces
// variable-size chunks.
func (rc *RabinCDC) NewChunker(r io.Reader) (Chunker, error) {
	if rc.MinChunkSize <= 0 || rc.MinChunkSize > rc.MaxChunkSize {
		return nil, fmt.Errorf("invalid chunk size bounds [%d, %d]", rc.MinChunkSize, rc.MaxChunkSize)
	}
	if rc.MaskBits < 1 || rc.MaskBits > 31 {
		return nil, fmt.Errorf("mask bits must be in [1, 31], got %d", rc.MaskBits)
	}

	poly := rc.Polynomial
	if poly == 0 {
		poly = rabin.DefaultPolynomial
	}
	window := rc.WindowSize
	if window == 0 {
		window = rabin.DefaultWindowSize
	}
	if rc.MinChunkSize < window {
		return nil, fmt.Errorf("min chunk size %d is smaller than the rolling window %d", rc.MinChunkSize, window)
	}
	hasher, err := rabin.NewWithOptions(poly, window)
	if err != nil {
		return nil, err
	}

	return &rabinChunker{
		r:         r,
		hasher:    hasher,
		buf:       make([]byte, 0, rc.MaxChunkSize),
		min:       rc.MinChunkSize,
		max:       rc.MaxChunkSize,
		primary:   1<<uint(rc.MaskBits) - 1,
		secondary: 1<<uint(rc.MaskBits-1) - 1,
	}, nil
}

type rabinChunker struct {
	r      io.Reader
	hasher *rabin.RollingHash
	buf    []byte // lookahead, at most max bytes
	offset uint64 // stream offset of buf[0]
	eof    bool

	min, max           int
	primary, secondary uint64
}

// fill tops the lookahead buffer up to max bytes or EOF. Chunk boundaries are
// computed against a full lookahead, so they do not depend on how the
// underlying reader fragments its reads.
func (c *rabinChunker) fill() error {
	for len(c.buf) < c.max && !c.eof {
		n, err := c.r.Read(c.buf[len(c.buf):c.max])
		c.buf = c.buf[:len(c.buf)+n]
		if err == io.EOF {
			c.eof = true
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Next returns the next content-defined chunk. The final chunk may be
// shorter than the minimum size; every other chunk length lies in
// [min, max].
func (c *rabinChunker) Next() (Chunk, error) {
	if err := c.fill(); err != nil {
		return Chunk{}, err
	}
	if len(c.buf) == 0 {
		return Chunk{}, io.EOF
	}

	cut := c.findCut()

	data := make([]byte, cut)
	copy(data, c.buf[:cut])
	chunk := Chunk{
		Data:   data,
		Offset: c.offset,
		Len:    uint64(cut),
	}

	n := copy(c.buf, c.buf[cut:])
	c.buf = c.buf[:n]
	c.offset += uint64(cut)
	return chunk, nil
}

// findCut returns the length of the next chunk, in [1, max].
func (c *rabinChunker) findCut() int {
	// The remainder of a short stream is always one chunk.
	if len(c.buf) < c.min {
		return len(c.buf)
	}

	// Seed the window with the first min bytes. Write skips ahead to the
	// final window, so this costs one window regardless of min.
	c.hasher.Reset()
	c.hasher.Write(c.buf[:c.min])

	secondary := 0
	for i := c.min; i < c.max; i++ {
		if i >= len(c.buf) {
			break
		}
		c.hasher.Roll(c.buf[i])
		hash := c.hasher.Sum64()

		if hash&c.primary == c.primary {
			return i
		}
		// Remember the last secondary boundary in case no primary shows up.
		if hash&c.secondary == c.secondary {
			secondary = i
		}
	}

	if secondary == 0 {
		secondary = c.max
	}
	if secondary > len(c.buf) {
		secondary = len(c.buf)
	}
	return secondary
}
