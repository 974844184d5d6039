package dedup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/zhengshuai-xiao/DedupScan/internal"
	S3client "github.com/zhengshuai-xiao/DedupScan/pkg/s3client"
)

// S3ShardBackend stages shards in a local cache directory and stores them in
// an S3-compatible bucket, so a scan can park its spill output elsewhere
// than the machine being scanned.
type S3ShardBackend struct {
	cacheDir string
	bucket   string
	client   *miniogo.Core
}

func (s *S3ShardBackend) LocalPath(name string) string {
	return filepath.Join(s.cacheDir, name)
}

// Put uploads the staged shard file and removes the local copy.
func (s *S3ShardBackend) Put(ctx context.Context, name string) error {
	localPath := s.LocalPath(name)
	if _, err := S3client.UploadFile(ctx, s.client, s.bucket, name, localPath); err != nil {
		return fmt.Errorf("failed to upload shard %s: %w", name, err)
	}
	if err := os.Remove(localPath); err != nil {
		logger.Warnf("failed to remove staged shard %s: %v", localPath, err)
	}
	return nil
}

// Fetch downloads the shard into the local cache and returns its path.
func (s *S3ShardBackend) Fetch(ctx context.Context, name string) (string, error) {
	localPath := s.LocalPath(name)

	reader, _, _, err := s.client.GetObject(ctx, s.bucket, name, miniogo.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get shard %s from S3: %w", name, err)
	}

	if _, err := internal.WriteReadCloserToFile(reader, localPath); err != nil {
		return "", fmt.Errorf("failed to stage shard %s locally: %w", name, err)
	}
	return localPath, nil
}

// Delete removes the shard from the bucket and from the local cache.
func (s *S3ShardBackend) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, name, miniogo.RemoveObjectOptions{})
	if err != nil && miniogo.ToErrorResponse(err).Code != "NoSuchKey" {
		return err
	}

	if err := os.Remove(s.LocalPath(name)); err != nil && !os.IsNotExist(err) {
		logger.Warnf("failed to remove cached shard %s: %v", s.LocalPath(name), err)
	}
	return nil
}
