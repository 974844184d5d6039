package dedup

import (
	"bytes"
	"container/heap"
	"context"
	"fmt"
	"io"
)

// IndexAggregator folds the shards produced over a scan into final
// statistics. Shards are individually sorted by fingerprint, so a k-way
// merge visits all records in global fingerprint order while holding just
// one record per shard in memory. Equal fingerprints that landed in
// different shards fold into one unique chunk; records sharing a truncation
// but not a fingerprint are adjacent in the merged order (the truncation is
// a prefix of the fingerprint) and surface as collisions, including the
// ones that straddle shard boundaries.
type IndexAggregator struct {
	backend ShardBackend
}

func NewIndexAggregator(backend ShardBackend) *IndexAggregator {
	return &IndexAggregator{backend: backend}
}

// mergeSource is one shard's cursor inside the merge heap.
type mergeSource struct {
	r   *shardReader
	rec ShardRecord
}

type mergeHeap []*mergeSource

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	return bytes.Compare(h[i].rec.FP[:], h[j].rec.FP[:]) < 0
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(*mergeSource))
}

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	src := old[n-1]
	*h = old[:n-1]
	return src
}

// Aggregate merges the named shards and fills in the dedup counters of
// stats. Any shard that is missing or corrupt aborts the aggregation with
// an error naming it.
func (a *IndexAggregator) Aggregate(ctx context.Context, shardNames []string, stats *ScanStatistics) error {
	stats.ShardCount = len(shardNames)

	h := make(mergeHeap, 0, len(shardNames))
	defer func() {
		for _, src := range h {
			if src.r != nil {
				src.r.close()
			}
		}
	}()

	for _, name := range shardNames {
		r, err := openShard(ctx, a.backend, name)
		if err != nil {
			return fmt.Errorf("aggregation failed: %w", err)
		}
		src := &mergeSource{r: r}
		if err := a.advance(src, &h); err != nil {
			return err
		}
	}
	heap.Init(&h)

	var (
		haveGroup bool
		group     ShardRecord // current fingerprint group, counts folded

		haveShort bool
		curShort  ShortFP
	)

	flushGroup := func() {
		stats.UniqueChunks++
		stats.TotalChunks += group.Count
		stats.UniqueBytes += uint64(group.Size)
		stats.DuplicateBytes += uint64(group.Size) * (group.Count - 1)

		if haveShort && group.Short == curShort {
			// Same truncation as the previous, different fingerprint: the
			// short hash would have merged two distinct chunks.
			stats.Collisions++
		} else {
			stats.UniqueShortHashes++
			curShort = group.Short
			haveShort = true
		}
	}

	for h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := h[0]
		rec := src.rec

		switch {
		case !haveGroup:
			group = rec
			haveGroup = true
		case rec.FP == group.FP:
			if rec.Check != group.Check || rec.Size != group.Size {
				return fmt.Errorf("aggregation failed: shard %s: conflicting metadata for fingerprint %x", src.r.name, rec.FP[:8])
			}
			group.Count += rec.Count
		default:
			flushGroup()
			group = rec
		}

		if err := a.advance(src, nil); err != nil {
			return err
		}
		if src.r == nil {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	if haveGroup {
		flushGroup()
	}

	stats.TotalBytes = stats.UniqueBytes + stats.DuplicateBytes
	return nil
}

// advance loads the next record of src, closing and clearing the reader at
// EOF. When addTo is non-nil a freshly loaded source is appended to it.
func (a *IndexAggregator) advance(src *mergeSource, addTo *mergeHeap) error {
	err := src.r.next(&src.rec)
	if err == io.EOF {
		closeErr := src.r.close()
		src.r = nil
		if closeErr != nil {
			return fmt.Errorf("aggregation failed: %w", closeErr)
		}
		return nil
	}
	if err != nil {
		src.r.close()
		src.r = nil
		return fmt.Errorf("aggregation failed: %w", err)
	}
	if addTo != nil {
		*addTo = append(*addTo, src)
	}
	return nil
}
