package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig(t *testing.T) *ScanConfig {
	t.Helper()
	conf := DefaultScanConfig()
	conf.Dir = t.TempDir()
	conf.OutputDir = t.TempDir()
	return conf
}

func TestScanConfig_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		mutate      func(*ScanConfig)
		expectError bool
	}{
		{
			name:        "Defaults",
			mutate:      func(c *ScanConfig) {},
			expectError: false,
		},
		{
			name:        "Fixed mode",
			mutate:      func(c *ScanConfig) { c.Mode = ChunkModeFixed },
			expectError: false,
		},
		{
			name:        "Missing directory",
			mutate:      func(c *ScanConfig) { c.Dir = "" },
			expectError: true,
		},
		{
			name:        "Directory does not exist",
			mutate:      func(c *ScanConfig) { c.Dir = "/no/such/dir" },
			expectError: true,
		},
		{
			name:        "Output does not exist",
			mutate:      func(c *ScanConfig) { c.OutputDir = "/no/such/dir" },
			expectError: true,
		},
		{
			name:        "Budget too small",
			mutate:      func(c *ScanConfig) { c.MemoryBudget = MinMemoryBudget - 1 },
			expectError: true,
		},
		{
			name:        "Unknown chunk mode",
			mutate:      func(c *ScanConfig) { c.Mode = "rolling" },
			expectError: true,
		},
		{
			name: "Fixed size not positive",
			mutate: func(c *ScanConfig) {
				c.Mode = ChunkModeFixed
				c.FixedChunkSize = 0
			},
			expectError: true,
		},
		{
			name:        "Min above max",
			mutate:      func(c *ScanConfig) { c.MinChunkSize = c.MaxChunkSize + 1 },
			expectError: true,
		},
		{
			name:        "Window not a power of two",
			mutate:      func(c *ScanConfig) { c.WindowSize = 24 },
			expectError: true,
		},
		{
			name:        "Min below window",
			mutate:      func(c *ScanConfig) { c.MinChunkSize = c.WindowSize - 1 },
			expectError: true,
		},
		{
			name:        "Mask bits out of range",
			mutate:      func(c *ScanConfig) { c.MaskBits = 32 },
			expectError: true,
		},
		{
			name:        "Unknown hash",
			mutate:      func(c *ScanConfig) { c.HashAlgo = "MD5" },
			expectError: true,
		},
		{
			name:        "Short hash too long",
			mutate:      func(c *ScanConfig) { c.ShortHashLen = 9 },
			expectError: true,
		},
		{
			name:        "Unknown compression",
			mutate:      func(c *ScanConfig) { c.Compression = "lz4" },
			expectError: true,
		},
		{
			name:        "Snappy compression",
			mutate:      func(c *ScanConfig) { c.Compression = "snappy" },
			expectError: false,
		},
		{
			name:        "Unknown backend",
			mutate:      func(c *ScanConfig) { c.Backend = "nfs" },
			expectError: true,
		},
		{
			name:        "S3 backend without endpoint",
			mutate:      func(c *ScanConfig) { c.Backend = ShardBackendS3 },
			expectError: true,
		},
		{
			name: "S3 backend configured",
			mutate: func(c *ScanConfig) {
				c.Backend = ShardBackendS3
				c.S3Endpoint = "127.0.0.1:9000"
				c.S3Bucket = "shards"
			},
			expectError: false,
		},
		{
			name:        "Zero workers",
			mutate:      func(c *ScanConfig) { c.Workers = 0 },
			expectError: true,
		},
		{
			name: "Budget too small for workers",
			mutate: func(c *ScanConfig) {
				c.MemoryBudget = MinMemoryBudget
				c.Workers = 2
			},
			expectError: true,
		},
		{
			name:        "Zero spill check interval",
			mutate:      func(c *ScanConfig) { c.SpillCheckInterval = 0 },
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := validConfig(t)
			tc.mutate(conf)
			err := conf.Validate()
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewCDC(t *testing.T) {
	conf := DefaultScanConfig()
	_, ok := newCDC(conf).(*RabinCDC)
	assert.True(t, ok)

	conf.Mode = ChunkModeFixed
	_, ok = newCDC(conf).(*FixedCDC)
	assert.True(t, ok)
}
