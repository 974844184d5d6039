package dedup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// POSIXShardBackend keeps shards where they were written, in the output
// directory on the local filesystem.
type POSIXShardBackend struct {
	dir string
}

func (p *POSIXShardBackend) LocalPath(name string) string {
	return filepath.Join(p.dir, name)
}

// Put is a no-op: for POSIX the shard is published once its file is closed.
func (p *POSIXShardBackend) Put(ctx context.Context, name string) error {
	return nil
}

// Fetch checks that the shard file still exists; a missing shard is a hard
// error since its entries cannot be recovered.
func (p *POSIXShardBackend) Fetch(ctx context.Context, name string) (string, error) {
	localPath := p.LocalPath(name)
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("shard %s is missing: %w", name, err)
	}
	return localPath, nil
}

// Delete removes the local shard file.
func (p *POSIXShardBackend) Delete(ctx context.Context, name string) error {
	return os.Remove(p.LocalPath(name))
}
