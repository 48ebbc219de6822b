// Package restore copies a backup back to a save location.
package restore

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

var (
	// ErrBusy means the slot stayed locked by a backup for every retry.
	ErrBusy = errors.New("slot busy")

	// ErrDestination rejects targets that would overwrite stored backups.
	ErrDestination = errors.New("invalid restore destination")
)

// SafetyLayout is the timestamp appended to a save moved aside by a restore.
const SafetyLayout = "20060102-150405"

type Options struct {
	// SafetyCopy renames an existing destination to
	// <dest>.pre-restore-<timestamp> instead of overwriting it.
	SafetyCopy bool
}

type Result struct {
	Dest       string
	SafetyCopy string
}

type Service struct {
	cat     *catalog.Catalog
	fs      fs.FS
	policy  fs.Policy
	saveDir string
	log     logging.Logger
	now     func() time.Time
}

// New creates a restore service. saveDir is the watched directory used by
// RestoreInPlace.
func New(cat *catalog.Catalog, f fs.FS, p fs.Policy, saveDir string, log logging.Logger) *Service {
	if f == nil {
		f = fs.New()
	}
	return &Service{cat: cat, fs: f, policy: p, saveDir: saveDir, log: log, now: time.Now}
}

// RestoreInPlace overwrites the slot's live save.
func (s *Service) RestoreInPlace(ctx context.Context, e catalog.Entry, opts Options) (Result, error) {
	return s.Restore(ctx, e, filepath.Join(s.saveDir, e.Slot), opts)
}

// Restore writes the payload of e to dest. Compressed backups are extracted.
// The backup itself is only read. Missing or unreadable backups fail with
// archive.ErrCorrupt.
func (s *Service) Restore(ctx context.Context, e catalog.Entry, dest string, opts Options) (Result, error) {
	log := s.log.With("backup", e.Name(), "dest", dest)
	log.Debug("entering Service.Restore()")

	if err := s.checkDest(e, dest); err != nil {
		return Result{}, err
	}

	unlock, err := s.lock(ctx, e.Slot)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	c, err := archive.Open(s.fs, e.Path, e.Compressed)
	if err != nil {
		return Result{}, fmt.Errorf("opening backup: %w", err)
	}
	defer c.Close()

	dir := filepath.Dir(dest)
	if err := s.fs.MkdirAll(dir); err != nil {
		return Result{}, fmt.Errorf("creating %s: %w", dir, err)
	}

	// the temp name must not match any tracked save pattern
	tmp := filepath.Join(dir, catalog.TempPrefix+uuid.NewString()+".restore")
	if err := s.writeTemp(c, tmp, e.Fingerprint); err != nil {
		s.discard(tmp)
		return Result{}, err
	}
	if !c.Modified.IsZero() {
		if err := s.fs.Chtimes(tmp, c.Modified, c.Modified); err != nil {
			log.Warn("restore: could not set modification time", "error", err)
		}
	}

	res := Result{Dest: dest}
	if opts.SafetyCopy {
		if _, err := s.fs.Stat(dest); err == nil {
			res.SafetyCopy = dest + ".pre-restore-" + s.now().Format(SafetyLayout)
			if err := s.fs.Rename(ctx, dest, res.SafetyCopy); err != nil {
				s.discard(tmp)
				return Result{}, fmt.Errorf("moving current save aside: %w", err)
			}
			log.Info("restore: kept current save", "copy", res.SafetyCopy)
		}
	}

	if err := s.fs.Rename(ctx, tmp, dest); err != nil {
		s.discard(tmp)
		if res.SafetyCopy != "" {
			if rerr := s.fs.Rename(context.Background(), res.SafetyCopy, dest); rerr != nil {
				log.Error("restore: could not put current save back", "copy", res.SafetyCopy, "error", rerr)
			}
		}
		return Result{}, fmt.Errorf("finalizing restore: %w", err)
	}

	log.Info("restore: done")
	return res, nil
}

// lock waits for the slot with the retry policy's backoff. Restores never
// queue behind a backup indefinitely.
func (s *Service) lock(ctx context.Context, slot string) (func(), error) {
	var unlock func()
	err := fs.RetryIf(ctx, s.policy, "lock "+slot, isBusy, func() error {
		u, ok := s.cat.TryLock(slot)
		if !ok {
			return ErrBusy
		}
		unlock = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return unlock, nil
}

// checkDest refuses the backup itself and anything in the backup directory,
// including when reached through a symlinked parent.
func (s *Service) checkDest(e catalog.Entry, dest string) error {
	target := resolve(dest)
	if target == resolve(e.Path) {
		return fmt.Errorf("%w: %s is the backup being restored", ErrDestination, dest)
	}
	if filepath.Dir(target) == resolveDir(s.cat.Dir()) {
		return fmt.Errorf("%w: %s is inside the backup directory", ErrDestination, dest)
	}
	return nil
}

func resolve(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return filepath.Join(resolveDir(filepath.Dir(abs)), filepath.Base(abs))
}

func resolveDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

func isBusy(err error) bool { return errors.Is(err, ErrBusy) }

func (s *Service) writeTemp(c *archive.Content, tmp string, want fingerprint.Fingerprint) error {
	f, err := s.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	h := fingerprint.NewHasher()
	_, err = io.Copy(io.MultiWriter(f, h), c)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}

	if !want.IsZero() && !h.Sum().Equal(want) {
		return fmt.Errorf("%w: payload does not match the recorded fingerprint", archive.ErrCorrupt)
	}
	return nil
}

func (s *Service) discard(tmp string) {
	if err := s.fs.Remove(context.Background(), tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("restore: could not remove temp file", "path", tmp, "error", err)
	}
}
