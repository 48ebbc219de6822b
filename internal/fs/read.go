package fs

import (
	"context"
	"fmt"
	"io"
)

// Reader is an open source file together with the stat taken before opening.
type Reader struct {
	io.ReadCloser
	Info FileInfo
}

// ReadStable opens path and hands it to consume, retrying while the file is
// locked, briefly missing, or changes underneath the read. consume may be
// called more than once and must discard partial work on error.
func ReadStable(ctx context.Context, f FS, p Policy, path string, consume func(r Reader) error) error {
	return RetryIf(ctx, p, "read "+path, IsTransientRead, func() error {
		before, err := f.Stat(path)
		if err != nil {
			return err
		}
		if before.IsDir {
			return fmt.Errorf("%s is a directory", path)
		}

		rc, err := f.Open(path)
		if err != nil {
			return err
		}
		err = consume(Reader{ReadCloser: rc, Info: before})
		_ = rc.Close()
		if err != nil {
			return err
		}

		after, err := f.Stat(path)
		if err != nil {
			return err
		}
		if sourceChanged(before, after) {
			return ErrSourceChanged
		}
		return nil
	})
}

func sourceChanged(orig, now FileInfo) bool {
	if now.Inode != 0 && orig.Inode != 0 && now.Inode != orig.Inode {
		return true
	}
	if !now.MTime.Equal(orig.MTime) {
		return true
	}
	if now.Size != orig.Size {
		return true
	}
	return false
}
