package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/DedupScan/dedup"
	"github.com/zhengshuai-xiao/DedupScan/internal"
)

func cmdChunks() *cli.Command {
	defaults := dedup.DefaultScanConfig()
	return &cli.Command{
		Name:      "chunks",
		Action:    chunks,
		Category:  "TOOL",
		Usage:     "Print the chunk boundaries and fingerprints of one file",
		ArgsUsage: "",
		Description: `
			Splits a single file with the same chunker a scan would use and prints one
			line per chunk. Useful for checking how a tuning change moves the
			boundaries before running a full scan.

			Examples:
			$ dedupscan chunks --file /data/big.iso
			$ dedupscan chunks --file /data/big.iso --fixed --chunk-size 8192`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Required: true,
				Usage:    "path to the local file to chunk",
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
				Usage: "primary divisor width in bits",
			},
			&cli.StringFlag{
				Name:  "hash",
				Value: defaults.HashAlgo,
				Usage: "chunk hash algorithm: SHA3-256/SHA256/BLAKE3",
			},
		},
	}
}

func chunks(c *cli.Context) error {
	if err := setupLogging(c); err != nil {
		return err
	}

	file, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	var cdc dedup.CDC
	if c.Bool("fixed") {
		cdc = &dedup.FixedCDC{ChunkSize: c.Int("chunk-size")}
	} else {
		cdc = &dedup.RabinCDC{
			MinChunkSize: c.Int("min-chunk-size"),
			MaxChunkSize: c.Int("max-chunk-size"),
			MaskBits:     c.Int("mask-bits"),
		}
	}

	hasher, err := dedup.NewChunkHasher(c.String("hash"), dedup.DefaultShortHashLen)
	if err != nil {
		return err
	}
	chunker, err := cdc.NewChunker(file)
	if err != nil {
		return err
	}

	var count int
	var total uint64
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error getting next chunk: %w", err)
		}
		hasher.CalcFP(&chunk)
		fmt.Printf("chunk %d: offset=%d len=%d fp=%s short=%016x\n",
			count, chunk.Offset, chunk.Len, internal.StringToHex(string(chunk.FP[:])), uint64(chunk.Short))
		count++
		total += chunk.Len
	}

	fmt.Printf("%d chunks, %d bytes\n", count, total)
	return nil
}
