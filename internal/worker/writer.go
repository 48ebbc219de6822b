package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/raoulx24/save-archiver/internal/archive"
	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/fingerprint"
	"github.com/raoulx24/save-archiver/internal/fs"
	"github.com/raoulx24/save-archiver/internal/logging"
)

// ErrNamingConflict means every suffix for the current second is taken.
var ErrNamingConflict = errors.New("naming conflict")

// Writer materialises backups: temp file, flush, verify, rename, register.
type Writer struct {
	cat    *catalog.Catalog
	fs     fs.FS
	policy fs.Policy
	log    logging.Logger
	now    func() time.Time
}

type WriterOption func(*Writer)

// WithClock replaces time.Now for naming.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

func NewWriter(cat *catalog.Catalog, f fs.FS, p fs.Policy, log logging.Logger, opts ...WriterOption) *Writer {
	w := &Writer{cat: cat, fs: f, policy: p, log: log, now: time.Now}
	for _, o := range opts {
		o(w)
	}
	return w
}

// CreateBackup copies src into the backup directory and registers it.
// Nothing appears under the final name unless the copy was flushed and
// re-read successfully. The caller must hold the slot lock.
func (w *Writer) CreateBackup(ctx context.Context, slot, src string, compress bool) (catalog.Entry, error) {
	created := w.now().UTC().Truncate(time.Second)
	// a clock stepped back must not sort the new backup below older ones
	if latest, ok := w.cat.Latest(slot); ok && created.Before(latest.Created) {
		w.log.Warn("writer: clock is behind latest backup, reusing its timestamp", "slot", slot, "latest", latest.Name())
		created = latest.Created
	}

	seq, err := w.nextSeq(slot, created)
	if err != nil {
		return catalog.Entry{}, err
	}

	entry := catalog.Entry{
		Slot:       slot,
		Created:    created,
		Seq:        seq,
		Compressed: compress,
	}
	name := catalog.FormatName(slot, created, seq, compress)
	dir := w.cat.Dir()
	entry.Path = filepath.Join(dir, name)
	tmp := filepath.Join(dir, catalog.TempPrefix+uuid.NewString()+"-"+name)

	if err := w.fs.MkdirAll(dir); err != nil {
		return catalog.Entry{}, fmt.Errorf("creating backup dir: %w", err)
	}

	w.log.Debug("writer: writing backup", "slot", slot, "tmp", tmp, "final", entry.Path)

	fp, mtime, err := w.writeTemp(ctx, src, tmp, compress)
	if err != nil {
		w.discard(tmp)
		return catalog.Entry{}, err
	}

	if err := w.verify(tmp, compress, fp); err != nil {
		w.discard(tmp)
		return catalog.Entry{}, err
	}

	if !compress {
		if err := w.fs.Chtimes(tmp, mtime, mtime); err != nil {
			w.log.Warn("writer: could not preserve modification time", "path", tmp, "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		w.discard(tmp)
		return catalog.Entry{}, err
	}

	if err := w.fs.Rename(ctx, tmp, entry.Path); err != nil {
		w.discard(tmp)
		return catalog.Entry{}, fmt.Errorf("finalizing backup: %w", err)
	}

	if info, err := w.fs.Stat(entry.Path); err == nil {
		entry.Size = info.Size
	}
	entry.Fingerprint = fp

	if err := w.cat.Add(entry); err != nil {
		return catalog.Entry{}, err
	}
	return entry, nil
}

// nextSeq picks the suffix for a backup created in the given second. A
// suffix is free when neither the catalog nor the directory uses it in
// either format; it is always above the latest entry's suffix so ordering
// by (timestamp, suffix) follows creation order.
func (w *Writer) nextSeq(slot string, created time.Time) (int, error) {
	seq := 0
	if latest, ok := w.cat.Latest(slot); ok && latest.Created.Equal(created) {
		seq = latest.Seq + 1
	}

	for ; seq <= catalog.MaxSeq; seq++ {
		e := catalog.Entry{Slot: slot, Created: created, Seq: seq}
		if w.cat.Has(e) {
			continue
		}
		if w.exists(catalog.FormatName(slot, created, seq, false)) ||
			w.exists(catalog.FormatName(slot, created, seq, true)) {
			continue
		}
		return seq, nil
	}
	return 0, fmt.Errorf("%w: %s at %s", ErrNamingConflict, slot, created.Format(catalog.TimeLayout))
}

func (w *Writer) exists(name string) bool {
	_, err := w.fs.Stat(filepath.Join(w.cat.Dir(), name))
	return !errors.Is(err, os.ErrNotExist)
}

// writeTemp streams src into tmp and returns the source fingerprint and
// modification time. A read that races a save is restarted from scratch.
func (w *Writer) writeTemp(ctx context.Context, src, tmp string, compress bool) (fingerprint.Fingerprint, time.Time, error) {
	var (
		fp    fingerprint.Fingerprint
		mtime time.Time
	)

	err := fs.ReadStable(ctx, w.fs, w.policy, src, func(r fs.Reader) error {
		// a previous attempt may have left a partial temp file
		if err := w.fs.Remove(ctx, tmp); err != nil {
			return err
		}

		f, err := w.fs.Create(tmp)
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}

		h := fingerprint.NewHasher()
		tee := io.TeeReader(r, h)
		if compress {
			_, err = archive.Write(f, filepath.Base(src), r.Info.MTime, tee)
		} else {
			_, err = io.Copy(f, tee)
		}
		if err == nil {
			err = f.Sync()
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", tmp, err)
		}

		fp = h.Sum()
		mtime = r.Info.MTime
		return nil
	})
	if err != nil {
		return fingerprint.Fingerprint{}, time.Time{}, fmt.Errorf("copying %s: %w", src, err)
	}
	return fp, mtime, nil
}

// verify re-reads the temp file and compares its payload with what was read.
func (w *Writer) verify(tmp string, compress bool, want fingerprint.Fingerprint) error {
	c, err := archive.Open(w.fs, tmp, compress)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", tmp, err)
	}
	defer c.Close()

	got, err := fingerprint.Of(c)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", tmp, err)
	}
	if !got.Equal(want) {
		return fmt.Errorf("verifying %s: %w: payload fingerprint %s, want %s", tmp, archive.ErrCorrupt, got.Short(), want.Short())
	}
	return nil
}

func (w *Writer) discard(tmp string) {
	if err := w.fs.Remove(context.Background(), tmp); err != nil {
		w.log.Warn("writer: could not remove temp file", "path", tmp, "error", err)
	}
}
