package fs

import (
	"context"
	"io"
	"os"
	"time"
)

// OSFS is the FS backed by the local operating system.
// Platform-specific details (such as inode extraction) are handled in build-tagged files.
type OSFS struct {
	policy Policy
}

func New() *OSFS {
	return &OSFS{policy: DefaultPolicy()}
}

// WithPolicy returns an OSFS whose Rename and Remove retry with p.
func WithPolicy(p Policy) *OSFS {
	return &OSFS{policy: p.normalize()}
}

func (o *OSFS) Stat(path string) (FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{
		Path:    path,
		Size:    st.Size(),
		MTime:   st.ModTime(),
		Inode:   inodeOf(st),
		IsDir:   st.IsDir(),
		ModeBit: st.Mode(),
	}, nil
}

func (o *OSFS) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (o *OSFS) Create(path string) (File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
}

func (o *OSFS) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (o *OSFS) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (o *OSFS) Chtimes(path string, atime, mtime time.Time) error {
	return os.Chtimes(path, atime, mtime)
}

func (o *OSFS) Rename(ctx context.Context, oldPath, newPath string) error {
	return renameWithRetry(ctx, o.policy, oldPath, newPath)
}

func (o *OSFS) Remove(ctx context.Context, path string) error {
	return removeWithRetry(ctx, o.policy, path)
}
