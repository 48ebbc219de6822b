package worker

import (
	"context"

	"github.com/raoulx24/save-archiver/internal/archive"
	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/fingerprint"
	"github.com/raoulx24/save-archiver/internal/fs"
	"github.com/raoulx24/save-archiver/internal/logging"
)

// Detector decides whether a save differs from its latest backup.
type Detector struct {
	cat    *catalog.Catalog
	fs     fs.FS
	policy fs.Policy
	log    logging.Logger
}

func NewDetector(cat *catalog.Catalog, f fs.FS, p fs.Policy, log logging.Logger) *Detector {
	return &Detector{cat: cat, fs: f, policy: p, log: log}
}

// Check fingerprints the live save. A save that stays locked or keeps
// changing fails with fs.ErrTransient; it is never reported as unchanged.
func (d *Detector) Check(ctx context.Context, path string) (fingerprint.Fingerprint, error) {
	return fingerprint.File(ctx, d.fs, d.policy, path)
}

// ShouldBackup is false only when the slot's latest backup has exactly the
// current fingerprint.
func (d *Detector) ShouldBackup(slot string, current fingerprint.Fingerprint) bool {
	if current.IsZero() {
		return true
	}
	latest, ok := d.cat.Latest(slot)
	if !ok {
		return true
	}

	stored := latest.Fingerprint
	if stored.IsZero() {
		fp, err := d.storedFingerprint(latest)
		if err != nil {
			d.log.Warn("detector: cannot read latest backup, backing up again", "backup", latest.Name(), "error", err)
			return true
		}
		d.cat.SetFingerprint(latest, fp)
		stored = fp
	}

	return !stored.Equal(current)
}

// storedFingerprint hashes the payload of a backup catalogued from disk.
func (d *Detector) storedFingerprint(e catalog.Entry) (fingerprint.Fingerprint, error) {
	c, err := archive.Open(d.fs, e.Path, e.Compressed)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	defer c.Close()
	return fingerprint.Of(c)
}
