package dedup

import (
	"context"
	"fmt"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ShardBackend defines where completed shard files live between the spill
// that writes them and the aggregation pass that reads them. Spills always
// write a local file first; Put publishes it, Fetch brings it back.
type ShardBackend interface {
	// LocalPath returns where the shard with this name lives (or will be
	// staged) on the local filesystem.
	LocalPath(name string) string
	// Put publishes a completed local shard file to the backend.
	Put(ctx context.Context, name string) error
	// Fetch makes the shard available locally and returns its path.
	Fetch(ctx context.Context, name string) (string, error)
	// Delete removes the shard from the backend.
	Delete(ctx context.Context, name string) error
}

// NewShardBackend builds the backend the config asks for.
func NewShardBackend(conf *ScanConfig) (ShardBackend, error) {
	switch conf.Backend {
	case ShardBackendPOSIX:
		return &POSIXShardBackend{dir: conf.OutputDir}, nil
	case ShardBackendS3:
		client, err := miniogo.NewCore(conf.S3Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(conf.S3AccessKey, conf.S3SecretKey, ""),
			Secure: conf.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client for %s: %w", conf.S3Endpoint, err)
		}
		return &S3ShardBackend{
			cacheDir: conf.OutputDir,
			bucket:   conf.S3Bucket,
			client:   client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown shard backend: %q", conf.Backend)
	}
}
