package dedup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanStatistics_Report(t *testing.T) {
	stats := NewScanStatistics()
	stats.TotalChunks = 2560
	stats.UniqueChunks = 1
	stats.UniqueShortHashes = 1
	stats.UniqueBytes = 4096
	stats.DuplicateBytes = 2559 * 4096
	stats.TotalBytes = 10 * 1024 * 1024
	stats.FilesScanned = 1
	stats.ShardCount = 1
	stats.finish()

	report := stats.Report()
	assert.Contains(t, report, "without file errors")
	assert.Contains(t, report, "2560 chunks total, 1 unique")
	assert.Contains(t, report, "1 short hashes, 0 collisions")

	stats.addFileError("/some/file", errors.New("permission denied"))
	assert.Contains(t, stats.Report(), "1 file errors")
}

func TestScanStatistics_Summary(t *testing.T) {
	stats := NewScanStatistics()
	stats.TotalChunks = 100
	stats.UniqueChunks = 60
	stats.addFileError("/some/file", errors.New("permission denied"))
	stats.finish()

	sum := stats.Summary()
	assert.Equal(t, stats.ScanID, sum.ScanID)
	assert.Equal(t, uint64(100), sum.TotalChunks)
	assert.Equal(t, uint64(60), sum.UniqueChunks)
	assert.Len(t, sum.FileErrors, 1)
	assert.Contains(t, sum.FileErrors[0], "/some/file")
}

func TestFileError_Unwrap(t *testing.T) {
	cause := errors.New("input/output error")
	err := &FileError{Path: "/dev/bad", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/dev/bad")
}
