package rabin

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Rolling a byte into a seeded hasher must produce the same fingerprint as
// hashing the same 16-byte window from scratch.
func TestRollingEqualsBatch(t *testing.T) {
	source := make([]byte, 50)
	for i := range source {
		source[i] = byte((i + 1) % 10)
	}

	rolling := New()
	rolling.Write(source[:15])

	batch := New()
	for i := 0; i+16 <= len(source); i++ {
		rolling.Roll(source[i+15])

		batch.Reset()
		batch.Write(source[i : i+16])

		assert.Equal(t, batch.Sum64(), rolling.Sum64(), "window at offset %d", i)
	}
}

func TestWriteSkipsToTail(t *testing.T) {
	data := make([]byte, 1000)
	rng := rand.New(rand.NewSource(1))
	rng.Read(data)

	all := New()
	all.Write(data)

	tail := New()
	tail.Write(data[len(data)-16:])

	assert.Equal(t, tail.Sum64(), all.Sum64())
}

func TestReset(t *testing.T) {
	r := New()
	r.Write([]byte("some bytes that change the state"))
	assert.NotZero(t, r.Sum64())

	r.Reset()
	assert.Zero(t, r.Sum64())

	// State from before the reset must not leak into the next stream.
	r.Write([]byte("0123456789abcdef"))
	fresh := New()
	fresh.Write([]byte("0123456789abcdef"))
	assert.Equal(t, fresh.Sum64(), r.Sum64())
}

func TestNewWithOptionsValidation(t *testing.T) {
	for _, size := range []int{0, -1, 3, 12, 100} {
		_, err := NewWithOptions(DefaultPolynomial, size)
		assert.Error(t, err, "window size %d", size)
	}
	for _, size := range []int{1, 2, 16, 64} {
		r, err := NewWithOptions(DefaultPolynomial, size)
		assert.NoError(t, err)
		assert.Equal(t, size, r.WindowSize())
	}
}

// The low byte of the fingerprint should be close to uniformly distributed
// over random input, otherwise cut points would cluster.
func TestRandomDistribution(t *testing.T) {
	const testBytes = 2 * 1024 * 1024
	const slack = testBytes / 4096 // ~6% of the expected bucket size

	var buckets [256]int
	rng := rand.New(rand.NewSource(42))

	r := New()
	seed := make([]byte, 15)
	rng.Read(seed)
	r.Write(seed)

	buf := make([]byte, testBytes)
	rng.Read(buf)
	for _, b := range buf {
		r.Roll(b)
		buckets[byte(r.Sum64())]++
	}

	lower := testBytes/256 - slack
	upper := testBytes/256 + slack
	for i, n := range buckets {
		assert.GreaterOrEqual(t, n, lower, "bucket %d", i)
		assert.LessOrEqual(t, n, upper, "bucket %d", i)
	}
}
