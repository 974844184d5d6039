package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zhengshuai-xiao/DedupScan/internal/compression"
	"golang.org/x/sync/errgroup"
)

// ScanDriver orchestrates one scan: it drives every file from a FileSource
// through chunking, hashing and the bounded index, then merges the spilled
// shards into final statistics. Per-file errors are collected and reported
// at the end; configuration, spill and aggregation errors abort the scan.
type ScanDriver struct {
	conf    *ScanConfig
	backend ShardBackend
	comp    compression.Compressor
}

// NewScanDriver validates the config and prepares the shard backend.
func NewScanDriver(conf *ScanConfig) (*ScanDriver, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan config: %w", err)
	}
	backend, err := NewShardBackend(conf)
	if err != nil {
		return nil, err
	}
	// Validate already vetted the name.
	comp, _ := compression.GetCompressorViaString(conf.Compression)

	return &ScanDriver{conf: conf, backend: backend, comp: comp}, nil
}

// Scan processes every file from src and returns the final statistics.
func (d *ScanDriver) Scan(ctx context.Context, src FileSource) (*ScanStatistics, error) {
	stats := NewScanStatistics()

	var indexes []*BoundedChunkIndex
	var err error
	if d.conf.Workers == 1 {
		indexes, err = d.scanSequential(ctx, src, stats)
	} else {
		indexes, err = d.scanParallel(ctx, src, stats)
	}
	if err != nil {
		return nil, err
	}

	var shards []string
	for _, ix := range indexes {
		if err := ix.Finalize(ctx); err != nil {
			return nil, fmt.Errorf("failed to finalize index: %w", err)
		}
		shards = append(shards, ix.Shards()...)
		stats.PeakMemoryEstimate += ix.PeakMemoryEstimate()
	}
	for _, name := range shards {
		stats.ShardPaths = append(stats.ShardPaths, d.backend.LocalPath(name))
	}

	if err := NewIndexAggregator(d.backend).Aggregate(ctx, shards, stats); err != nil {
		return nil, err
	}

	if !d.conf.KeepShards {
		for _, name := range shards {
			if err := d.backend.Delete(ctx, name); err != nil {
				logger.Warnf("failed to delete shard %s: %s", name, err)
			}
		}
		stats.ShardPaths = nil
	}

	stats.finish()
	return stats, nil
}

func (d *ScanDriver) newIndex(budget uint64) *BoundedChunkIndex {
	return NewBoundedChunkIndex(budget, d.conf.ShortHashLen, d.comp, d.backend)
}

func (d *ScanDriver) scanSequential(ctx context.Context, src FileSource, stats *ScanStatistics) ([]*BoundedChunkIndex, error) {
	ix := d.newIndex(d.conf.MemoryBudget)
	hasher, err := NewChunkHasher(d.conf.HashAlgo, d.conf.ShortHashLen)
	if err != nil {
		return nil, err
	}
	cdc := newCDC(d.conf)

	for {
		entry, rc, err := d.nextFile(src, stats)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rc == nil {
			continue // file error, already recorded
		}
		if err := d.processFile(ctx, entry, rc, cdc, hasher, ix, stats); err != nil {
			return nil, err
		}
	}
	return []*BoundedChunkIndex{ix}, nil
}

// scanParallel chunks and hashes files concurrently. Each worker owns a
// private index with a share of the memory budget, so inserts never
// contend and one worker's spill does not stall the others; the aggregator
// reconciles all the shards at the end.
func (d *ScanDriver) scanParallel(ctx context.Context, src FileSource, stats *ScanStatistics) ([]*BoundedChunkIndex, error) {
	type job struct {
		entry WalkEntry
		rc    io.ReadCloser
	}

	indexes := make([]*BoundedChunkIndex, d.conf.Workers)
	budget := d.conf.MemoryBudget / uint64(d.conf.Workers)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job)

	g.Go(func() error {
		defer close(jobs)
		for {
			entry, rc, err := d.nextFile(src, stats)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if rc == nil {
				continue
			}
			select {
			case jobs <- job{entry: entry, rc: rc}:
			case <-gctx.Done():
				rc.Close()
				return gctx.Err()
			}
		}
	})

	for i := 0; i < d.conf.Workers; i++ {
		ix := d.newIndex(budget)
		indexes[i] = ix
		g.Go(func() error {
			hasher, err := NewChunkHasher(d.conf.HashAlgo, d.conf.ShortHashLen)
			if err != nil {
				return err
			}
			cdc := newCDC(d.conf)
			for j := range jobs {
				if err := d.processFile(gctx, j.entry, j.rc, cdc, hasher, ix, stats); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return indexes, nil
}

// nextFile pulls the next openable file from the source. File errors are
// recorded and swallowed (nil ReadCloser); anything else is fatal.
func (d *ScanDriver) nextFile(src FileSource, stats *ScanStatistics) (WalkEntry, io.ReadCloser, error) {
	entry, rc, err := src.Next()
	if err == io.EOF {
		return WalkEntry{}, nil, io.EOF
	}
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		logger.Warnf("skipping %s: %v", fileErr.Path, fileErr.Err)
		stats.addFileError(fileErr.Path, fileErr.Err)
		return entry, nil, nil
	}
	if err != nil {
		return WalkEntry{}, nil, err
	}
	return entry, rc, nil
}

// processFile runs one file through chunker, hasher and index. A read error
// mid-file skips the rest of that file; index and spill errors are fatal.
func (d *ScanDriver) processFile(ctx context.Context, entry WalkEntry, rc io.ReadCloser,
	cdc CDC, hasher *ChunkHasher, ix *BoundedChunkIndex, stats *ScanStatistics) error {
	defer rc.Close()

	chunker, err := cdc.NewChunker(rc)
	if err != nil {
		return err
	}

	inserts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warnf("read error in %s, skipping rest of file: %v", entry.Path, err)
			stats.addFileError(entry.Path, err)
			return nil
		}

		hasher.CalcFP(&chunk)
		if err := ix.Insert(chunk.FP, chunk.Short, chunk.Check, uint32(chunk.Len)); err != nil {
			return err
		}

		inserts++
		if inserts%d.conf.SpillCheckInterval == 0 {
			if _, err := ix.SpillIfNeeded(ctx); err != nil {
				return fmt.Errorf("spill failed, aborting scan: %w", err)
			}
		}
	}

	stats.incFilesScanned()
	return nil
}
