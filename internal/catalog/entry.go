package catalog

import (
	"path/filepath"
	"time"

	"github.com/raoulx24/save-archiver/internal/fingerprint"
)

// Entry is one stored backup of a save slot.
type Entry struct {
	Slot       string
	Created    time.Time
	Seq        int // same-second disambiguation suffix, 0 for none
	Path       string
	Compressed bool
	Size       int64

	// Fingerprint of the backed up content; zero when not yet known.
	Fingerprint fingerprint.Fingerprint
}

// Name is the on-disk file name of the entry.
func (e Entry) Name() string {
	return filepath.Base(e.Path)
}

// Before orders entries of one slot by creation time, then suffix.
func (e Entry) Before(o Entry) bool {
	if !e.Created.Equal(o.Created) {
		return e.Created.Before(o.Created)
	}
	return e.Seq < o.Seq
}

func (e Entry) sameKey(o Entry) bool {
	return e.Slot == o.Slot && e.Created.Equal(o.Created) && e.Seq == o.Seq
}
