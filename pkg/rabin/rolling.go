// Package rabin implements a Rabin fingerprint rolling hash over a sliding
// window of bytes. The fingerprint is the remainder of the window, treated as
// a polynomial over GF(2), divided by an irreducible polynomial. It is not
// cryptographically secure, but it is fast, and two identical windows always
// produce the same fingerprint, which is what content-defined chunking needs.
package rabin

import "fmt"

// DefaultPolynomial is x^64 + x^4 + x^3 + x + 1 with the x^64 bit implicit.
// The value is taken from the "Table of Low-Weight Binary Irreducible
// Polynomials" (HP Labs, HPL-98-135).
const DefaultPolynomial uint64 = 0x1B

// DefaultWindowSize is the number of bytes the fingerprint covers.
const DefaultWindowSize = 16

const bitsPerByte = 8

// shiftLeftWithMod shifts number left n bits; whenever the implicit bit 64
// would be set, the polynomial is folded back in. XOR is the GF(2) remainder
// operation.
func shiftLeftWithMod(number uint64, n uint, poly uint64) uint64 {
	for ; n > 0; n-- {
		needsMod := number&0x8000000000000000 != 0
		number <<= 1
		if needsMod {
			number ^= poly
		}
	}
	return number
}

// RollingHash maintains the fingerprint of the last windowSize bytes pushed
// into it. Pushing a byte is two table lookups and two XORs: the push table
// holds the contribution of the byte that overflows out of the 64-bit
// accumulator, the pop table the contribution of the byte that leaves the
// window.
type RollingHash struct {
	push [256]uint64
	pop  [256]uint64

	hash  uint64
	queue []byte
	next  int
	mask  int
}

// New returns a RollingHash with the default polynomial and window size.
func New() *RollingHash {
	r, _ := NewWithOptions(DefaultPolynomial, DefaultWindowSize)
	return r
}

// NewWithOptions returns a RollingHash for the given polynomial (with the
// x^64 term implicit) and window size. The window size must be a power of
// two so the byte queue can wrap with a mask instead of a modulo.
func NewWithOptions(poly uint64, windowSize int) (*RollingHash, error) {
	if windowSize <= 0 || windowSize&(windowSize-1) != 0 {
		return nil, fmt.Errorf("window size must be a positive power of two, got %d", windowSize)
	}

	r := &RollingHash{
		queue: make([]byte, windowSize),
		mask:  windowSize - 1,
	}
	for i := uint64(0); i < 256; i++ {
		r.push[i] = shiftLeftWithMod(i<<56, bitsPerByte, poly)
		r.pop[i] = shiftLeftWithMod(i, bitsPerByte*uint(windowSize), poly)
	}
	return r, nil
}

// WindowSize returns the number of bytes the fingerprint covers.
func (r *RollingHash) WindowSize() int {
	return len(r.queue)
}

// Sum64 returns the current fingerprint.
func (r *RollingHash) Sum64() uint64 {
	return r.hash
}

// Reset clears the window state so the hasher can be reused on an
// independent stream.
func (r *RollingHash) Reset() {
	r.hash = 0
	for i := range r.queue {
		r.queue[i] = 0
	}
	r.next = 0
}

// Roll pushes one byte into the window and pops the oldest one out.
func (r *RollingHash) Roll(b byte) {
	// Concat the new byte onto the hash; the byte shifted out of the top is
	// folded back in via the push table.
	highByte := r.hash >> 56
	r.hash = (r.hash<<8 | uint64(b)) ^ r.push[highByte]

	// Remove the byte leaving the window.
	oldByte := r.queue[r.next]
	r.hash ^= r.pop[oldByte]

	r.queue[r.next] = b
	r.next = (r.next + 1) & r.mask
}

// Write rolls all of p into the hash. Only the final window's worth of bytes
// contributes to the fingerprint, so when p is longer than twice the window
// it is cheaper to reset and hash just the tail.
func (r *RollingHash) Write(p []byte) {
	if len(p) > 2*len(r.queue) {
		r.Reset()
		p = p[len(p)-len(r.queue):]
	}
	for _, b := range p {
		r.Roll(b)
	}
}
