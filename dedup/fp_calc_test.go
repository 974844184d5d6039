package dedup

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHasher(t *testing.T) {
	for _, algo := range []string{"SHA3-256", "SHA256", "BLAKE3"} {
		h := GetHasher(algo)
		assert.NotNil(t, h, algo)
		assert.Equal(t, FPSize, h.Size(), algo)
	}
	assert.Nil(t, GetHasher("MD5"))
	assert.Nil(t, GetHasher(""))
}

func TestNewChunkHasher_Validation(t *testing.T) {
	_, err := NewChunkHasher("SHA3-256", 8)
	assert.NoError(t, err)

	_, err = NewChunkHasher("MD5", 8)
	assert.Error(t, err)

	_, err = NewChunkHasher("SHA3-256", 0)
	assert.Error(t, err)

	_, err = NewChunkHasher("SHA3-256", 9)
	assert.Error(t, err)
}

func TestCalcFP_Deterministic(t *testing.T) {
	hasher, err := NewChunkHasher(DefaultHashAlgo, 8)
	assert.NoError(t, err)

	a := Chunk{Data: []byte("the same bytes")}
	b := Chunk{Data: []byte("the same bytes")}
	hasher.CalcFP(&a)
	hasher.CalcFP(&b)

	assert.Equal(t, a.FP, b.FP)
	assert.Equal(t, a.Short, b.Short)
	assert.Equal(t, a.Check, b.Check)

	c := Chunk{Data: []byte("different bytes")}
	hasher.CalcFP(&c)
	assert.NotEqual(t, a.FP, c.FP)
}

func TestCalcFP_ShortIsFPPrefix(t *testing.T) {
	for _, shortLen := range []int{1, 4, 8} {
		hasher, err := NewChunkHasher(DefaultHashAlgo, shortLen)
		assert.NoError(t, err)

		chunk := Chunk{Data: []byte("prefix check")}
		hasher.CalcFP(&chunk)

		want := binary.BigEndian.Uint64(chunk.FP[:8]) >> uint(64-8*shortLen)
		assert.Equal(t, ShortFP(want), chunk.Short)
	}
}

func TestCalcFPs_Batch(t *testing.T) {
	hasher, err := NewChunkHasher(DefaultHashAlgo, 8)
	assert.NoError(t, err)

	chunks := []Chunk{
		{Data: []byte("one")},
		{Data: []byte("two")},
		{Data: []byte("one")},
	}
	hasher.CalcFPs(chunks)

	assert.Equal(t, chunks[0].FP, chunks[2].FP)
	assert.NotEqual(t, chunks[0].FP, chunks[1].FP)
}

func TestChunkFP_Fold(t *testing.T) {
	var a, b ChunkFP
	// Same leading 8 bytes, different tail: Short agrees, fold does not.
	for i := 0; i < 8; i++ {
		a[i] = 0xAB
		b[i] = 0xAB
	}
	b[31] = 1

	assert.Equal(t, a.Short(8), b.Short(8))
	assert.NotEqual(t, a.fold(), b.fold())
}
