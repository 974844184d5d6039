package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/DedupScan/dedup"
	"github.com/zhengshuai-xiao/DedupScan/internal"
	"github.com/zhengshuai-xiao/DedupScan/pkg/daemon"
)

func cmdScan() *cli.Command {
	defaults := dedup.DefaultScanConfig()
	selfFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "directory",
			Aliases:  []string{"d"},
			Usage:    "root of the directory tree to scan",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   "/tmp/dedupscan",
			Usage:   "directory receiving spilled index shards",
		},
		&cli.StringFlag{
			Name:    "memory",
			Aliases: []string{"m"},
			Value:   "256m",
			Usage:   "index memory budget, accepts b/k/m/g suffixes",
		},
		&cli.BoolFlag{
			Name:    "fixed",
			Aliases: []string{"f"},
			Usage:   "use fixed-size chunking instead of content-defined chunking",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Value: defaults.FixedChunkSize,
			Usage: "chunk size in bytes for fixed-size chunking",
		},
		&cli.IntFlag{
			Name:  "min-chunk-size",
			Value: defaults.MinChunkSize,
			Usage: "minimum chunk size in bytes for content-defined chunking",
		},
		&cli.IntFlag{
			Name:  "max-chunk-size",
			Value: defaults.MaxChunkSize,
			Usage: "maximum chunk size in bytes for content-defined chunking",
		},
		&cli.IntFlag{
			Name:  "mask-bits",
			Value: defaults.MaskBits,
			Usage: "primary divisor width in bits, the average chunk grows with 2^bits",
		},
		&cli.IntFlag{
			Name:  "short-hash-len",
			Value: defaults.ShortHashLen,
			Usage: "truncated fingerprint length in bytes (1-8)",
		},
		&cli.StringFlag{
			Name:  "hash",
			Value: defaults.HashAlgo,
			Usage: "chunk hash algorithm: SHA3-256/SHA256/BLAKE3",
		},
		&cli.StringFlag{
			Name:  "compression",
			Value: defaults.Compression,
			Usage: "compress spilled shards with the specified algorithm: none/snappy/zlib",
		},
		&cli.IntFlag{
			Name:  "workers",
			Value: defaults.Workers,
			Usage: "number of concurrent scan workers",
		},
		&cli.StringFlag{
			Name:  "shard-backend",
			Value: dedup.ShardBackendPOSIX,
			Usage: fmt.Sprintf("shard store backend type ('%s' or '%s')", dedup.ShardBackendPOSIX, dedup.ShardBackendS3),
		},
		&cli.StringFlag{
			Name:  "s3-endpoint",
			Value: "127.0.0.1:9000",
			Usage: "S3 endpoint for the shard store backend",
		},
		&cli.StringFlag{
			Name:  "s3-bucket",
			Value: "dedupscan",
			Usage: "S3 bucket receiving spilled shards",
		},
		&cli.BoolFlag{
			Name:  "s3-use-ssl",
			Usage: "connect to the S3 endpoint over TLS",
		},
		&cli.BoolFlag{
			Name:  "keep-shards",
			Usage: "keep spilled shards after aggregation instead of deleting them",
		},
		&cli.BoolFlag{
			Name:    "background",
			Aliases: []string{"b"},
			Usage:   "run the scan in background, requires --logdir",
		},
		&cli.StringFlag{
			Name:  "stats-file",
			Usage: "also save the scan statistics to this file",
		},
	}

	return &cli.Command{
		Name:      "scan",
		Action:    scan,
		Category:  "TOOL",
		Usage:     "Estimate the deduplication ratio of a directory tree",
		ArgsUsage: "",
		Description: `
			Walks the directory tree, splits every regular file into chunks, fingerprints
			each chunk and reports how much of the data is duplicated. The chunk index is
			memory bounded: when it outgrows the budget it spills sorted shards to the
			output directory and merges them at the end of the scan.

			When the S3 backend is selected, set DEDUPSCAN_ACCESS_KEY and
			DEDUPSCAN_SECRET_KEY environment variables.

			Examples:
			$ dedupscan scan -d /data -m 512m
			$ dedupscan scan -d /data --fixed --chunk-size 8192`,
		Flags: selfFlags,
	}
}

func scan(c *cli.Context) error {
	if shouldExit, err := handleBackgroundMode(c); err != nil {
		logger.Fatalf("Failed to start in background: %v", err)
	} else if shouldExit {
		return nil
	}

	if err := setupLogging(c); err != nil {
		return err
	}

	budget, err := internal.ParseMemorySize(c.String("memory"))
	if err != nil {
		return fmt.Errorf("invalid memory budget %q: %w", c.String("memory"), err)
	}

	conf := dedup.DefaultScanConfig()
	conf.Dir = c.String("directory")
	conf.OutputDir = c.String("output")
	conf.MemoryBudget = budget
	conf.FixedChunkSize = c.Int("chunk-size")
	conf.MinChunkSize = c.Int("min-chunk-size")
	conf.MaxChunkSize = c.Int("max-chunk-size")
	conf.MaskBits = c.Int("mask-bits")
	conf.ShortHashLen = c.Int("short-hash-len")
	conf.HashAlgo = c.String("hash")
	conf.Compression = c.String("compression")
	conf.Workers = c.Int("workers")
	conf.Backend = c.String("shard-backend")
	conf.KeepShards = c.Bool("keep-shards")
	if c.Bool("fixed") {
		conf.Mode = dedup.ChunkModeFixed
	}
	if conf.Backend == dedup.ShardBackendS3 {
		conf.S3Endpoint = c.String("s3-endpoint")
		conf.S3Bucket = c.String("s3-bucket")
		conf.S3UseSSL = c.Bool("s3-use-ssl")
		conf.S3AccessKey = os.Getenv("DEDUPSCAN_ACCESS_KEY")
		conf.S3SecretKey = os.Getenv("DEDUPSCAN_SECRET_KEY")
		if conf.S3AccessKey == "" || conf.S3SecretKey == "" {
			logger.Fatalf("DEDUPSCAN_ACCESS_KEY and DEDUPSCAN_SECRET_KEY should be specified as environment variables for the S3 backend")
		}
	}

	if err := os.MkdirAll(conf.OutputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", conf.OutputDir, err)
	}

	driver, err := dedup.NewScanDriver(conf)
	if err != nil {
		return err
	}

	src, err := dedup.NewFSWalker(conf.Dir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := driver.Scan(ctx, src)
	if err != nil {
		return err
	}

	fmt.Println(stats.Report())

	if path := c.String("stats-file"); path != "" {
		if err := saveStats(path, stats); err != nil {
			return err
		}
	}
	return nil
}

func saveStats(path string, stats *dedup.ScanStatistics) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create stats file %s: %w", path, err)
	}
	defer file.Close()
	if err := internal.SerializeToFile(stats.Summary(), file); err != nil {
		return fmt.Errorf("failed to save stats to %s: %w", path, err)
	}
	return nil
}

// handleBackgroundMode checks for the --background flag and daemonizes the
// process if set. It returns true if the current process is the parent and
// should exit.
func handleBackgroundMode(c *cli.Context) (shouldExit bool, err error) {
	// The daemonized child is marked by an env var; just clean up and go on.
	if daemon.WasReborn() {
		daemon.UnsetMark()
		return false, nil
	}

	if !c.Bool("background") {
		return false, nil
	}

	logDir := c.String("logdir")
	if logDir == "" {
		return false, fmt.Errorf("logdir must be specified when running in background mode")
	}
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return false, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	pidFile := filepath.Join(logDir, "dedupscan.pid")
	if internal.Exists(pidFile) {
		pid, readErr := daemon.ReadPidFile(pidFile)
		if readErr == nil {
			proc, findErr := os.FindProcess(pid)
			if findErr == nil {
				// Signal 0 probes whether the process still exists.
				if err := proc.Signal(syscall.Signal(0)); err != nil {
					logger.Warnf("Found stale PID file for dead process %d. Removing it.", pid)
					if err := os.Remove(pidFile); err != nil {
						return false, fmt.Errorf("failed to remove stale PID file %s: %w", pidFile, err)
					}
				} else {
					return false, fmt.Errorf("a scan is already running with PID %d", pid)
				}
			}
		}
	}

	// Re-run ourselves without the background flag to avoid forking forever.
	var newArgs []string
	for _, arg := range os.Args {
		if arg != "--background" && arg != "-b" {
			newArgs = append(newArgs, arg)
		}
	}

	d, err := daemon.Daemonize(
		pidFile,
		filepath.Join(logDir, "dedupscan.log"),
		newArgs,
	)
	if err != nil {
		return false, fmt.Errorf("unable to run in background: %w", err)
	}

	return d != nil, nil
}
