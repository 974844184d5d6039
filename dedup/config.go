package dedup

import (
	"fmt"
	"os"

	"github.com/zhengshuai-xiao/DedupScan/internal"
	"github.com/zhengshuai-xiao/DedupScan/internal/compression"
	"github.com/zhengshuai-xiao/DedupScan/pkg/rabin"
)

// ChunkMode selects the chunk boundary policy.
type ChunkMode string

const (
	ChunkModeFixed    ChunkMode = "fixed"
	ChunkModeVariable ChunkMode = "variable"
)

// Shard backend types.
const (
	ShardBackendPOSIX = "posix"
	ShardBackendS3    = "s3"
)

const (
	// Chunk size bounds from the measurements in HP TR 2005-30R1.
	DefaultMinChunkSize = 1856
	DefaultMaxChunkSize = 11300

	DefaultFixedChunkSize = 4096

	// 11 mask bits target an average chunk of ~2 KiB past the minimum.
	DefaultMaskBits = 11

	DefaultShortHashLen = 8

	DefaultMemoryBudget = 256 * 1024 * 1024

	// MinMemoryBudget keeps the budget above the cost of a near-empty
	// index, so a spill always writes a meaningful shard.
	MinMemoryBudget = 64 * 1024
)

// ScanConfig carries everything one scan needs. It is validated once before
// scanning begins and not mutated afterwards.
type ScanConfig struct {
	Dir       string // root directory to scan
	OutputDir string // directory receiving shard files

	MemoryBudget uint64

	Mode           ChunkMode
	FixedChunkSize int
	MinChunkSize   int
	MaxChunkSize   int

	// Rolling hash tuning; zero values select the rabin package defaults.
	Polynomial uint64
	WindowSize int
	MaskBits   int

	HashAlgo     string
	ShortHashLen int

	Compression string

	Backend     string
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	Workers            int
	SpillCheckInterval int

	// KeepShards leaves the spilled shards in place after aggregation.
	KeepShards bool
}

// DefaultScanConfig returns a config with every tunable at its default.
// Dir and OutputDir must still be set by the caller.
func DefaultScanConfig() *ScanConfig {
	return &ScanConfig{
		MemoryBudget:       DefaultMemoryBudget,
		Mode:               ChunkModeVariable,
		FixedChunkSize:     DefaultFixedChunkSize,
		MinChunkSize:       DefaultMinChunkSize,
		MaxChunkSize:       DefaultMaxChunkSize,
		Polynomial:         rabin.DefaultPolynomial,
		WindowSize:         rabin.DefaultWindowSize,
		MaskBits:           DefaultMaskBits,
		HashAlgo:           DefaultHashAlgo,
		ShortHashLen:       DefaultShortHashLen,
		Compression:        "none",
		Backend:            ShardBackendPOSIX,
		Workers:            1,
		SpillCheckInterval: 1,
	}
}

// Validate checks the whole config. Any error here is a configuration error
// and aborts before scanning begins.
func (c *ScanConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("scan directory is required")
	}
	if info, err := os.Stat(c.Dir); err != nil || !info.IsDir() {
		return fmt.Errorf("scan directory %q does not exist or is not a directory", c.Dir)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if !internal.IsWritableDir(c.OutputDir) {
		return fmt.Errorf("output directory %q does not exist or is not writable", c.OutputDir)
	}

	if c.MemoryBudget < MinMemoryBudget {
		return fmt.Errorf("memory budget %d is below the minimum of %d bytes", c.MemoryBudget, MinMemoryBudget)
	}

	switch c.Mode {
	case ChunkModeFixed:
		if c.FixedChunkSize <= 0 {
			return fmt.Errorf("fixed chunk size must be positive, got %d", c.FixedChunkSize)
		}
	case ChunkModeVariable:
		if c.MinChunkSize <= 0 || c.MinChunkSize > c.MaxChunkSize {
			return fmt.Errorf("invalid chunk size bounds [%d, %d]", c.MinChunkSize, c.MaxChunkSize)
		}
		if c.WindowSize <= 0 || c.WindowSize&(c.WindowSize-1) != 0 {
			return fmt.Errorf("window size must be a positive power of two, got %d", c.WindowSize)
		}
		if c.MinChunkSize < c.WindowSize {
			return fmt.Errorf("min chunk size %d is smaller than the rolling window %d", c.MinChunkSize, c.WindowSize)
		}
		if c.MaskBits < 1 || c.MaskBits > 31 {
			return fmt.Errorf("mask bits must be in [1, 31], got %d", c.MaskBits)
		}
	default:
		return fmt.Errorf("unknown chunk mode: %q", c.Mode)
	}

	if GetHasher(c.HashAlgo) == nil {
		return fmt.Errorf("unknown hash algorithm: %s", c.HashAlgo)
	}
	if c.ShortHashLen < 1 || c.ShortHashLen > 8 {
		return fmt.Errorf("short hash length must be in [1, 8] bytes, got %d", c.ShortHashLen)
	}

	if _, err := compression.GetCompressorViaString(c.Compression); err != nil {
		return fmt.Errorf("unknown compression: %s", c.Compression)
	}

	switch c.Backend {
	case ShardBackendPOSIX:
	case ShardBackendS3:
		if c.S3Endpoint == "" || c.S3Bucket == "" {
			return fmt.Errorf("s3 backend requires an endpoint and a bucket")
		}
	default:
		return fmt.Errorf("unknown shard backend: %q", c.Backend)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.SpillCheckInterval < 1 {
		return fmt.Errorf("spill check interval must be at least 1, got %d", c.SpillCheckInterval)
	}
	if c.MemoryBudget/uint64(c.Workers) < MinMemoryBudget {
		return fmt.Errorf("memory budget %d is too small for %d workers", c.MemoryBudget, c.Workers)
	}

	return nil
}

// newCDC builds the chunk boundary policy the config asks for.
func newCDC(c *ScanConfig) CDC {
	if c.Mode == ChunkModeFixed {
		return &FixedCDC{ChunkSize: c.FixedChunkSize}
	}
	return &RabinCDC{
		MinChunkSize: c.MinChunkSize,
		MaxChunkSize: c.MaxChunkSize,
		MaskBits:     c.MaskBits,
		Polynomial:   c.Polynomial,
		WindowSize:   c.WindowSize,
	}
}
