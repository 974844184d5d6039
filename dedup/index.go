package dedup

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/zhengshuai-xiao/DedupScan/internal"
	"github.com/zhengshuai-xiao/DedupScan/internal/compression"
)

// Estimated resident cost per map entry: the 32-byte key, the entry struct
// and the amortized bucket overhead of Go's map implementation.
const (
	indexEntryMemCost = 112
	shortSetMemCost   = 64
	shortElemMemCost  = 16
)

// IndexEntry is the in-memory occurrence record for one distinct chunk
// fingerprint. An entry lives either in a BoundedChunkIndex or in the shard
// that a spill moved it to, never in both.
type IndexEntry struct {
	Short ShortFP
	Check uint32
	Size  uint32
	Count uint64
}

// BoundedChunkIndex accumulates occurrence counts for chunk fingerprints
// under a memory ceiling. When the running estimate goes over the ceiling,
// the whole map is serialized to a new shard and the index starts over
// empty, so resident memory stays bounded no matter how much data a scan
// covers. Not safe for concurrent use; run one index per worker.
type BoundedChunkIndex struct {
	budget   uint64
	shortLen int
	comp     compression.Compressor
	backend  ShardBackend

	entries   map[ChunkFP]*IndexEntry
	shortSeen map[ShortFP]*internal.UInt64Set

	memEstimate uint64
	peak        uint64

	id     string
	seq    int
	shards []string
	closed bool
}

// NewBoundedChunkIndex creates an index that spills through backend whenever
// its estimated resident size exceeds budget bytes.
func NewBoundedChunkIndex(budget uint64, shortLen int, comp compression.Compressor, backend ShardBackend) *BoundedChunkIndex {
	return &BoundedChunkIndex{
		budget:    budget,
		shortLen:  shortLen,
		comp:      comp,
		backend:   backend,
		entries:   make(map[ChunkFP]*IndexEntry),
		shortSeen: make(map[ShortFP]*internal.UInt64Set),
		id:        uuid.New().String()[:8],
	}
}

// Insert records one occurrence of the fingerprint. New fingerprints grow
// the memory estimate; repeats only bump a counter.
func (ix *BoundedChunkIndex) Insert(fp ChunkFP, short ShortFP, check uint32, size uint32) error {
	if ix.closed {
		return internal.ErrIndexClosed
	}

	if e, ok := ix.entries[fp]; ok {
		e.Count++
		return nil
	}

	ix.entries[fp] = &IndexEntry{Short: short, Check: check, Size: size, Count: 1}
	ix.memEstimate += indexEntryMemCost + FPSize

	// Track the distinct fingerprints seen per truncation, folded to a
	// uint64 tag. Two tags under one truncation means the short hash has
	// already merged two different chunks in this epoch.
	set, ok := ix.shortSeen[short]
	if !ok {
		set = internal.NewUInt64Set()
		ix.shortSeen[short] = set
		ix.memEstimate += shortSetMemCost
	}
	tag := fp.fold()
	if !set.Contains(tag) {
		set.Add(tag)
		ix.memEstimate += shortElemMemCost
		if set.Len() > 1 {
			logger.Tracef("short hash %016x now covers %d distinct fingerprints", uint64(short), set.Len())
		}
	}

	if ix.memEstimate > ix.peak {
		ix.peak = ix.memEstimate
	}
	return nil
}

// MemoryEstimate returns the current estimated resident bytes. It only
// grows between spills.
func (ix *BoundedChunkIndex) MemoryEstimate() uint64 {
	return ix.memEstimate
}

// PeakMemoryEstimate returns the largest estimate observed so far.
func (ix *BoundedChunkIndex) PeakMemoryEstimate() uint64 {
	return ix.peak
}

// SpillIfNeeded spills the whole index to a new shard if the memory
// estimate is over budget. It reports whether a spill happened. A spill
// write failure is fatal: continuing after dropping entries would corrupt
// the unique and collision counts.
func (ix *BoundedChunkIndex) SpillIfNeeded(ctx context.Context) (bool, error) {
	if ix.memEstimate <= ix.budget {
		return false, nil
	}
	if err := ix.spill(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Finalize spills any remaining entries and closes the index. Inserts after
// Finalize fail with ErrIndexClosed.
func (ix *BoundedChunkIndex) Finalize(ctx context.Context) error {
	if ix.closed {
		return internal.ErrIndexClosed
	}
	if len(ix.entries) > 0 {
		if err := ix.spill(ctx); err != nil {
			return err
		}
	}
	ix.closed = true
	return nil
}

// Shards returns the names of the shards this index has produced, in the
// order they were written.
func (ix *BoundedChunkIndex) Shards() []string {
	return ix.shards
}

// spill moves every resident entry into a freshly written shard, sorted by
// fingerprint, then resets the maps and the estimate to zero.
func (ix *BoundedChunkIndex) spill(ctx context.Context) error {
	name := fmt.Sprintf("shard_%s_%06d", ix.id, ix.seq)

	fps := make([]ChunkFP, 0, len(ix.entries))
	for fp := range ix.entries {
		fps = append(fps, fp)
	}
	sort.Slice(fps, func(i, j int) bool {
		return bytes.Compare(fps[i][:], fps[j][:]) < 0
	})

	w, err := newShardWriter(ix.backend, name, ix.comp, ix.shortLen)
	if err != nil {
		return err
	}
	for _, fp := range fps {
		e := ix.entries[fp]
		rec := ShardRecord{FP: fp, Short: e.Short, Check: e.Check, Size: e.Size, Count: e.Count}
		if err := w.writeRecord(&rec); err != nil {
			return err
		}
	}
	if err := w.close(ctx); err != nil {
		return err
	}

	logger.Debugf("spilled %d entries (%d estimated bytes) to shard %s", len(ix.entries), ix.memEstimate, name)

	ix.entries = make(map[ChunkFP]*IndexEntry)
	ix.shortSeen = make(map[ShortFP]*internal.UInt64Set)
	ix.memEstimate = 0
	ix.seq++
	ix.shards = append(ix.shards, name)
	return nil
}
