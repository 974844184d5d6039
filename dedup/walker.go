package dedup

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WalkEntry identifies one file of a scan.
type WalkEntry struct {
	Path string
	Size int64
}

// FileSource yields the files of a scan one at a time. Next returns io.EOF
// when the walk is done. A *FileError return means this particular file
// could not be opened; the caller records it and moves on.
type FileSource interface {
	Next() (WalkEntry, io.ReadCloser, error)
}

// fsWalker walks a directory tree recursively. The file list is gathered up
// front (metadata only); file handles are opened lazily, one per Next call.
type fsWalker struct {
	entries []WalkEntry
	pos     int
}

// NewFSWalker returns a FileSource over every regular, non-empty file under
// root. Empty files are skipped: a zero-byte stream has no chunks.
func NewFSWalker(root string) (FileSource, error) {
	w := &fsWalker{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warnf("walk error at %s: %v", path, err)
			return nil // skip unreadable subtrees, keep walking
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logger.Warnf("failed to stat %s: %v", path, err)
			return nil
		}
		if info.Size() == 0 {
			logger.Tracef("skipping empty file %s", path)
			return nil
		}
		w.entries = append(w.entries, WalkEntry{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return w, nil
}

func (w *fsWalker) Next() (WalkEntry, io.ReadCloser, error) {
	if w.pos >= len(w.entries) {
		return WalkEntry{}, nil, io.EOF
	}
	entry := w.entries[w.pos]
	w.pos++

	file, err := os.Open(entry.Path)
	if err != nil {
		return entry, nil, &FileError{Path: entry.Path, Err: err}
	}
	return entry, file, nil
}
