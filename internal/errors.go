package internal

import "errors"

var (
	ErrIndexClosed  = errors.New("chunk index is closed")
	ErrShardCorrupt = errors.New("shard corrupt")
)
