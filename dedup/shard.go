package dedup

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/zhengshuai-xiao/DedupScan/internal"
	"github.com/zhengshuai-xiao/DedupScan/internal/compression"
)

// Shard file layout:
//
//	offset 0  magic "DSSH"
//	offset 4  format version (1)
//	offset 5  compression type
//	offset 6  short hash length in bytes
//	offset 7  reserved
//	offset 8  record count, uint64 LE (backfilled on close)
//	offset 16 CRC32 of the uncompressed record stream (backfilled on close)
//	offset 20 record stream, possibly compressed
//
// Records are fixed width and sorted ascending by fingerprint, so shards can
// be merged with a k-way merge without loading more than one record per
// shard. A shard is written once and never modified in place.
const (
	shardMagic      = "DSSH"
	shardVersion    = 1
	shardHeaderSize = 20

	// ShardRecordSize is the width of one serialized index entry.
	ShardRecordSize = FPSize + 8 + 4 + 4 + 8
)

// ShardRecord is the on-disk form of one index entry.
type ShardRecord struct {
	FP    ChunkFP
	Short ShortFP
	Check uint32
	Size  uint32
	Count uint64
}

func (r *ShardRecord) marshal(buf []byte) {
	copy(buf[0:FPSize], r.FP[:])
	short := internal.UInt64ToBytesLittleEndian(uint64(r.Short))
	copy(buf[32:40], short[:])
	check := internal.UInt32ToBytesLittleEndian(r.Check)
	copy(buf[40:44], check[:])
	size := internal.UInt32ToBytesLittleEndian(r.Size)
	copy(buf[44:48], size[:])
	count := internal.UInt64ToBytesLittleEndian(r.Count)
	copy(buf[48:56], count[:])
}

func (r *ShardRecord) unmarshal(buf []byte) {
	copy(r.FP[:], buf[0:FPSize])
	r.Short = ShortFP(internal.BytesToUInt64LittleEndian([8]byte(buf[32:40])))
	r.Check = internal.BytesToUInt32LittleEndian([4]byte(buf[40:44]))
	r.Size = internal.BytesToUInt32LittleEndian([4]byte(buf[44:48]))
	r.Count = internal.BytesToUInt64LittleEndian([8]byte(buf[48:56]))
}

// shardWriter streams sorted records into a staged shard file and publishes
// it to the backend on Close.
type shardWriter struct {
	name    string
	backend ShardBackend
	file    *os.File
	bw      *bufio.Writer
	body    io.WriteCloser // compression stream, or nil when uncompressed
	crc     uint32
	count   uint64
	recBuf  [ShardRecordSize]byte
}

func newShardWriter(backend ShardBackend, name string, comp compression.Compressor, shortLen int) (*shardWriter, error) {
	path := backend.LocalPath(name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create shard file %s: %w", path, err)
	}

	var compType compression.CompressionType
	if comp != nil {
		compType = comp.Type()
	}
	var header [shardHeaderSize]byte
	copy(header[0:4], shardMagic)
	header[4] = shardVersion
	header[5] = byte(compType)
	header[6] = byte(shortLen)
	if _, err := internal.WriteAll(file, header[:]); err != nil {
		file.Close()
		return nil, err
	}

	w := &shardWriter{
		name:    name,
		backend: backend,
		file:    file,
		bw:      bufio.NewWriter(file),
	}
	if comp != nil {
		w.body = comp.NewWriter(w.bw)
	}
	return w, nil
}

func (w *shardWriter) writeRecord(rec *ShardRecord) error {
	rec.marshal(w.recBuf[:])
	w.crc = internal.UpdateCRC32(w.crc, w.recBuf[:])
	w.count++

	var dst io.Writer = w.bw
	if w.body != nil {
		dst = w.body
	}
	if _, err := dst.Write(w.recBuf[:]); err != nil {
		return fmt.Errorf("failed to write shard record: %w", err)
	}
	return nil
}

// close finishes the record stream, backfills count and CRC into the header
// and hands the file to the backend. Any failure here is a spill failure and
// fatal to the scan.
func (w *shardWriter) close(ctx context.Context) error {
	if w.body != nil {
		if err := w.body.Close(); err != nil {
			w.file.Close()
			return fmt.Errorf("failed to finish shard compression: %w", err)
		}
	}
	if err := w.bw.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush shard %s: %w", w.name, err)
	}

	var tail [12]byte
	binary.LittleEndian.PutUint64(tail[0:8], w.count)
	binary.LittleEndian.PutUint32(tail[8:12], w.crc)
	if _, err := w.file.WriteAt(tail[:], 8); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to write shard header %s: %w", w.name, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close shard %s: %w", w.name, err)
	}

	return w.backend.Put(ctx, w.name)
}

// shardReader iterates the records of one shard in fingerprint order,
// verifying the CRC along the way.
type shardReader struct {
	name     string
	file     *os.File
	body     io.ReadCloser
	count    uint64
	read     uint64
	shortLen int
	crc      uint32
	wantCRC  uint32
	recBuf   [ShardRecordSize]byte
}

func openShard(ctx context.Context, backend ShardBackend, name string) (*shardReader, error) {
	path, err := backend.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shard %s: %w", name, err)
	}

	var header [shardHeaderSize]byte
	if _, err := io.ReadFull(file, header[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("shard %s: short header: %w", name, internal.ErrShardCorrupt)
	}
	if !bytes.Equal(header[0:4], []byte(shardMagic)) || header[4] != shardVersion {
		file.Close()
		return nil, fmt.Errorf("shard %s: bad magic or version: %w", name, internal.ErrShardCorrupt)
	}

	comp, err := compression.GetCompressorViaType(compression.CompressionType(header[5]))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shard %s: %w", name, internal.ErrShardCorrupt)
	}

	r := &shardReader{
		name:     name,
		file:     file,
		count:    binary.LittleEndian.Uint64(header[8:16]),
		shortLen: int(header[6]),
		wantCRC:  binary.LittleEndian.Uint32(header[16:20]),
	}

	var body io.Reader = bufio.NewReader(file)
	if comp != nil {
		rc, err := comp.NewReader(body)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("shard %s: %w", name, internal.ErrShardCorrupt)
		}
		r.body = rc
	} else {
		r.body = io.NopCloser(body)
	}
	return r, nil
}

// next returns the next record, or io.EOF after the last one. The CRC check
// happens when the final record has been read, so a truncated or bit-flipped
// shard surfaces as ErrShardCorrupt rather than bad statistics.
func (r *shardReader) next(rec *ShardRecord) error {
	if r.read == r.count {
		if r.crc != r.wantCRC {
			return fmt.Errorf("shard %s: CRC mismatch: %w", r.name, internal.ErrShardCorrupt)
		}
		return io.EOF
	}
	if _, err := io.ReadFull(r.body, r.recBuf[:]); err != nil {
		return fmt.Errorf("shard %s: truncated at record %d: %w", r.name, r.read, internal.ErrShardCorrupt)
	}
	r.crc = internal.UpdateCRC32(r.crc, r.recBuf[:])
	r.read++
	rec.unmarshal(r.recBuf[:])
	return nil
}

func (r *shardReader) close() error {
	r.body.Close()
	return r.file.Close()
}
