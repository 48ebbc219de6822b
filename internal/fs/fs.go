// Package fs defines the filesystem abstraction used by save-archiver.
// Everything that touches the backup directory or reads a live save goes
// through FS so tests can inject failures.
package fs

import (
	"context"
	"io"
	"os"
	"time"
)

type FileInfo struct {
	Path    string
	Size    int64
	MTime   time.Time
	Inode   uint64
	IsDir   bool
	ModeBit os.FileMode
}

// File is the writable handle returned by Create.
type File interface {
	io.Writer
	io.Closer
	Sync() error
	Name() string
}

type FS interface {
	Stat(path string) (FileInfo, error)
	Open(path string) (io.ReadCloser, error)
	Create(path string) (File, error)
	Rename(ctx context.Context, oldPath, newPath string) error
	Remove(ctx context.Context, path string) error
	Chtimes(path string, atime, mtime time.Time) error
	MkdirAll(path string) error
	ReadDir(path string) ([]os.DirEntry, error)
}
