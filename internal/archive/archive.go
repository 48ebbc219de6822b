// Package archive reads and writes the stored form of a backup: either the
// raw save bytes or a zip holding exactly one file named after the save.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/raoulx24/save-archiver/internal/fs"
)

// ErrCorrupt marks a backup that is missing, truncated or malformed.
// Callers must not treat it like a plain i/o failure.
var ErrCorrupt = errors.New("corrupt backup")

// Write stores r as the single entry name of a new zip written to w.
func Write(w io.Writer, name string, modified time.Time, r io.Reader) (int64, error) {
	zw := zip.NewWriter(w)

	hdr := &zip.FileHeader{
		Name:     path.Base(name),
		Method:   zip.Deflate,
		Modified: modified,
	}
	ew, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, fmt.Errorf("creating archive entry: %w", err)
	}

	n, err := io.Copy(ew, r)
	if err != nil {
		_ = zw.Close()
		return n, fmt.Errorf("compressing %s: %w", name, err)
	}

	if err := zw.Close(); err != nil {
		return n, fmt.Errorf("closing archive: %w", err)
	}
	return n, nil
}

// Content is the readable payload of a stored backup.
type Content struct {
	io.Reader
	// Name is the original save name for archives, the file name otherwise.
	Name     string
	Modified time.Time

	closer io.Closer
}

func (c *Content) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Open returns the payload of the backup stored at p. Read errors on the
// returned Content are reported as ErrCorrupt.
func Open(f fs.FS, p string, compressed bool) (*Content, error) {
	info, err := f.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s is missing: %w", ErrCorrupt, p, err)
		}
		return nil, err
	}

	rc, err := f.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s is missing: %w", ErrCorrupt, p, err)
		}
		return nil, err
	}

	if !compressed {
		return &Content{
			Reader:   corruptOnError{r: rc, path: p},
			Name:     filepath.Base(p),
			Modified: info.MTime,
			closer:   rc,
		}, nil
	}

	ra, size, err := readerAt(rc, info.Size)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, p, err)
	}
	if len(zr.File) != 1 {
		_ = rc.Close()
		return nil, fmt.Errorf("%w: %s holds %d entries, want 1", ErrCorrupt, p, len(zr.File))
	}

	zf := zr.File[0]
	er, err := zf.Open()
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, p, err)
	}

	return &Content{
		Reader:   corruptOnError{r: er, path: p},
		Name:     path.Base(zf.Name),
		Modified: zf.Modified,
		closer:   multiCloser{er, rc},
	}, nil
}

func readerAt(rc io.ReadCloser, size int64) (io.ReaderAt, int64, error) {
	if ra, ok := rc.(io.ReaderAt); ok {
		return ra, size, nil
	}
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(b), int64(len(b)), nil
}

type corruptOnError struct {
	r    io.Reader
	path string
}

func (c corruptOnError) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: %s: %w", ErrCorrupt, c.path, err)
	}
	return n, err
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
