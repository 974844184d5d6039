package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zhengshuai-xiao/DedupScan/internal"
)

func fpFromSeed(seed byte) ChunkFP {
	var fp ChunkFP
	for i := range fp {
		fp[i] = seed + byte(i)
	}
	return fp
}

func TestIndex_InsertAndCount(t *testing.T) {
	backend := &POSIXShardBackend{dir: t.TempDir()}
	ix := NewBoundedChunkIndex(1<<20, 8, nil, backend)

	fp := fpFromSeed(1)
	assert.NoError(t, ix.Insert(fp, fp.Short(8), 0xAB, 4096))
	afterFirst := ix.MemoryEstimate()
	assert.Greater(t, afterFirst, uint64(0))

	// A repeat bumps the counter without growing the estimate.
	assert.NoError(t, ix.Insert(fp, fp.Short(8), 0xAB, 4096))
	assert.Equal(t, afterFirst, ix.MemoryEstimate())

	fp2 := fpFromSeed(2)
	assert.NoError(t, ix.Insert(fp2, fp2.Short(8), 0xCD, 2048))
	assert.Greater(t, ix.MemoryEstimate(), afterFirst)

	assert.NoError(t, ix.Finalize(context.Background()))
	assert.Len(t, ix.Shards(), 1)

	recs, err := readAllRecords(backend, ix.Shards()[0])
	assert.NoError(t, err)
	assert.Len(t, recs, 2)

	byFP := map[ChunkFP]ShardRecord{}
	for _, rec := range recs {
		byFP[rec.FP] = rec
	}
	assert.Equal(t, uint64(2), byFP[fp].Count)
	assert.Equal(t, uint64(1), byFP[fp2].Count)
}

func TestIndex_SpillOnBudget(t *testing.T) {
	backend := &POSIXShardBackend{dir: t.TempDir()}
	// Budget a handful of entries.
	ix := NewBoundedChunkIndex(1024, 8, nil, backend)

	ctx := context.Background()
	spills := 0
	for i := 0; i < 64; i++ {
		fp := fpFromSeed(byte(i))
		assert.NoError(t, ix.Insert(fp, fp.Short(8), uint32(i), 4096))
		spilled, err := ix.SpillIfNeeded(ctx)
		assert.NoError(t, err)
		if spilled {
			spills++
			assert.Equal(t, uint64(0), ix.MemoryEstimate())
		}
	}
	assert.Greater(t, spills, 1)
	assert.NoError(t, ix.Finalize(ctx))

	// Every insert was a distinct fingerprint; together the shards must
	// hold all of them exactly once.
	total := 0
	for _, name := range ix.Shards() {
		recs, err := readAllRecords(backend, name)
		assert.NoError(t, err)
		for i := 1; i < len(recs); i++ {
			assert.True(t, lessFP(recs[i-1].FP, recs[i].FP), "shard records must be sorted")
		}
		total += len(recs)
	}
	assert.Equal(t, 64, total)
}

func TestIndex_PeakMemoryEstimate(t *testing.T) {
	backend := &POSIXShardBackend{dir: t.TempDir()}
	ix := NewBoundedChunkIndex(1024, 8, nil, backend)

	ctx := context.Background()
	for i := 0; i < 32; i++ {
		fp := fpFromSeed(byte(i))
		assert.NoError(t, ix.Insert(fp, fp.Short(8), 0, 4096))
		_, err := ix.SpillIfNeeded(ctx)
		assert.NoError(t, err)
	}
	assert.Greater(t, ix.PeakMemoryEstimate(), ix.budget)
	assert.LessOrEqual(t, ix.MemoryEstimate(), ix.PeakMemoryEstimate())
}

func TestIndex_InsertAfterFinalize(t *testing.T) {
	backend := &POSIXShardBackend{dir: t.TempDir()}
	ix := NewBoundedChunkIndex(1<<20, 8, nil, backend)

	ctx := context.Background()
	fp := fpFromSeed(9)
	assert.NoError(t, ix.Insert(fp, fp.Short(8), 0, 1))
	assert.NoError(t, ix.Finalize(ctx))

	assert.ErrorIs(t, ix.Insert(fp, fp.Short(8), 0, 1), internal.ErrIndexClosed)
	assert.ErrorIs(t, ix.Finalize(ctx), internal.ErrIndexClosed)
}

func TestIndex_FinalizeEmpty(t *testing.T) {
	backend := &POSIXShardBackend{dir: t.TempDir()}
	ix := NewBoundedChunkIndex(1<<20, 8, nil, backend)

	assert.NoError(t, ix.Finalize(context.Background()))
	assert.Empty(t, ix.Shards())
}

func lessFP(a, b ChunkFP) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
