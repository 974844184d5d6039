package dedup

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// FileError records one file that could not be scanned. File errors do not
// abort a scan; they are collected and reported at the end.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ScanStatistics is the result of one scan. It is created when the scan
// starts, mutated by the driver (file counters) and the aggregator (dedup
// counters), and read-only after Finish.
type ScanStatistics struct {
	ScanID string

	TotalChunks       uint64
	UniqueChunks      uint64
	UniqueShortHashes uint64
	Collisions        uint64

	TotalBytes     uint64
	UniqueBytes    uint64
	DuplicateBytes uint64

	ShardCount         int
	ShardPaths         []string
	PeakMemoryEstimate uint64

	FilesScanned uint64
	FileErrors   []FileError

	Elapsed time.Duration

	start time.Time
	mu    sync.Mutex
}

func NewScanStatistics() *ScanStatistics {
	return &ScanStatistics{
		ScanID: uuid.New().String(),
		start:  time.Now(),
	}
}

func (s *ScanStatistics) addFileError(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FileErrors = append(s.FileErrors, FileError{Path: path, Err: err})
}

func (s *ScanStatistics) incFilesScanned() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesScanned++
}

func (s *ScanStatistics) finish() {
	s.Elapsed = time.Since(s.start)
}

// ScanSummary is the serializable form of ScanStatistics: counters only,
// file errors flattened to strings.
type ScanSummary struct {
	ScanID string

	TotalChunks       uint64
	UniqueChunks      uint64
	UniqueShortHashes uint64
	Collisions        uint64

	TotalBytes     uint64
	UniqueBytes    uint64
	DuplicateBytes uint64

	ShardCount         int
	PeakMemoryEstimate uint64

	FilesScanned uint64
	FileErrors   []string

	ElapsedMillis int64
}

// Summary converts the statistics into their serializable form.
func (s *ScanStatistics) Summary() *ScanSummary {
	sum := &ScanSummary{
		ScanID:             s.ScanID,
		TotalChunks:        s.TotalChunks,
		UniqueChunks:       s.UniqueChunks,
		UniqueShortHashes:  s.UniqueShortHashes,
		Collisions:         s.Collisions,
		TotalBytes:         s.TotalBytes,
		UniqueBytes:        s.UniqueBytes,
		DuplicateBytes:     s.DuplicateBytes,
		ShardCount:         s.ShardCount,
		PeakMemoryEstimate: s.PeakMemoryEstimate,
		FilesScanned:       s.FilesScanned,
		ElapsedMillis:      s.Elapsed.Milliseconds(),
	}
	for _, fe := range s.FileErrors {
		sum.FileErrors = append(sum.FileErrors, fe.Error())
	}
	return sum
}

// Report renders the statistics for humans. It always distinguishes a clean
// scan from one that skipped files.
func (s *ScanStatistics) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "scan %s finished in %s\n", s.ScanID, s.Elapsed.Round(time.Millisecond))
	if n := len(s.FileErrors); n > 0 {
		fmt.Fprintf(&b, "scan completed with %d file errors\n", n)
	} else {
		fmt.Fprintf(&b, "scan completed without file errors\n")
	}

	fmt.Fprintf(&b, "%d files, %s scanned\n", s.FilesScanned, humanize.IBytes(s.TotalBytes))
	fmt.Fprintf(&b, "%d chunks total, %d unique\n", s.TotalChunks, s.UniqueChunks)
	if s.TotalBytes > 0 {
		fmt.Fprintf(&b, "%s (%.4f%%) unique bytes\n", humanize.IBytes(s.UniqueBytes),
			float64(s.UniqueBytes)*100/float64(s.TotalBytes))
	}
	if s.UniqueChunks > 0 {
		fmt.Fprintf(&b, "%s per unique chunk\n", humanize.IBytes(s.UniqueBytes/s.UniqueChunks))
	}
	fmt.Fprintf(&b, "%d short hashes, %d collisions\n", s.UniqueShortHashes, s.Collisions)
	fmt.Fprintf(&b, "%d shards, peak index memory %s\n", s.ShardCount, humanize.IBytes(s.PeakMemoryEstimate))

	return b.String()
}
