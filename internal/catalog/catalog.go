// Package catalog indexes the backup directory by save slot. The directory
// is the source of truth; the catalog is a cache rebuilt from file names.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/raoulx24/save-archiver/internal/fingerprint"
	"github.com/raoulx24/save-archiver/internal/fs"
)

// ErrDuplicate is returned by Add when the slot already has an entry with
// the same timestamp and suffix.
var ErrDuplicate = errors.New("duplicate backup entry")

// Catalog maps each slot to its entries, oldest first.
type Catalog struct {
	dir string
	fs  fs.FS

	mu    sync.RWMutex
	slots map[string][]Entry

	locks slotLocks
}

// StaleTempAge is how old a temp file must be before RemoveStaleTemps
// treats it as left over from an interrupted write.
const StaleTempAge = 10 * time.Minute

// RebuildStats summarises a directory scan.
type RebuildStats struct {
	Entries int
	Slots   int
	Ignored []string
	Temps   []string
}

func New(dir string, f fs.FS) *Catalog {
	if f == nil {
		f = fs.New()
	}
	return &Catalog{
		dir:   filepath.Clean(dir),
		fs:    f,
		slots: map[string][]Entry{},
		locks: slotLocks{m: map[string]*sync.Mutex{}},
	}
}

func (c *Catalog) Dir() string { return c.dir }

// Rebuild replaces the catalog with what the backup directory holds. It
// only reads: temp files are counted, never catalogued or removed.
// Fingerprints already known for surviving entries are kept.
func (c *Catalog) Rebuild(ctx context.Context) (RebuildStats, error) {
	var stats RebuildStats

	if err := c.fs.MkdirAll(c.dir); err != nil {
		return stats, fmt.Errorf("creating backup dir: %w", err)
	}

	des, err := c.fs.ReadDir(c.dir)
	if err != nil {
		return stats, fmt.Errorf("reading backup dir: %w", err)
	}

	known := map[string]fingerprint.Fingerprint{}
	c.mu.RLock()
	for _, es := range c.slots {
		for _, e := range es {
			if !e.Fingerprint.IsZero() {
				known[e.Path] = e.Fingerprint
			}
		}
	}
	c.mu.RUnlock()

	slots := map[string][]Entry{}
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		full := filepath.Join(c.dir, name)

		if IsTemp(name) {
			stats.Temps = append(stats.Temps, name)
			continue
		}

		pn, err := ParseName(name)
		if err != nil {
			stats.Ignored = append(stats.Ignored, name)
			continue
		}

		var size int64
		if info, err := de.Info(); err == nil {
			size = info.Size()
		}

		slots[pn.Slot] = append(slots[pn.Slot], Entry{
			Slot:        pn.Slot,
			Created:     pn.Created,
			Seq:         pn.Seq,
			Path:        full,
			Compressed:  pn.Compressed,
			Size:        size,
			Fingerprint: known[full],
		})
	}

	for slot, es := range slots {
		sort.Slice(es, func(i, j int) bool { return es[i].Before(es[j]) })
		// a raw and a compressed file may share a timestamp; keep the first
		out := es[:0]
		for _, e := range es {
			if len(out) > 0 && out[len(out)-1].sameKey(e) {
				stats.Ignored = append(stats.Ignored, e.Name())
				continue
			}
			out = append(out, e)
		}
		slots[slot] = out
		stats.Entries += len(out)
	}
	stats.Slots = len(slots)

	c.mu.Lock()
	c.slots = slots
	c.mu.Unlock()

	return stats, nil
}

// RemoveStaleTemps deletes temp files whose last write is older than
// minAge. Younger ones may belong to a backup or restore in progress,
// possibly in another process.
func (c *Catalog) RemoveStaleTemps(ctx context.Context, minAge time.Duration) ([]string, error) {
	des, err := c.fs.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("reading backup dir: %w", err)
	}

	cutoff := time.Now().Add(-minAge)
	var removed []string
	for _, de := range des {
		if de.IsDir() || !IsTemp(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := c.fs.Remove(ctx, filepath.Join(c.dir, de.Name())); err != nil {
			return removed, err
		}
		removed = append(removed, de.Name())
	}
	return removed, nil
}

// Add registers a newly written entry, keeping the slot sorted.
func (c *Catalog) Add(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	es := c.slots[e.Slot]
	i := sort.Search(len(es), func(i int) bool { return !es[i].Before(e) })
	if i < len(es) && es[i].sameKey(e) {
		return fmt.Errorf("%w: %s", ErrDuplicate, e.Name())
	}

	es = append(es, Entry{})
	copy(es[i+1:], es[i:])
	es[i] = e
	c.slots[e.Slot] = es
	return nil
}

// Remove drops e from the catalog. It does not touch the file.
func (c *Catalog) Remove(e Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	es := c.slots[e.Slot]
	for i := range es {
		if es[i].Path == e.Path {
			es = append(es[:i], es[i+1:]...)
			if len(es) == 0 {
				delete(c.slots, e.Slot)
			} else {
				c.slots[e.Slot] = es
			}
			return true
		}
	}
	return false
}

// Entries returns a copy of the slot's history, oldest first.
func (c *Catalog) Entries(slot string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.slots[slot]...)
}

func (c *Catalog) Latest(slot string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	es := c.slots[slot]
	if len(es) == 0 {
		return Entry{}, false
	}
	return es[len(es)-1], true
}

// Has reports whether the slot already uses the given timestamp and suffix.
func (c *Catalog) Has(e Entry) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, x := range c.slots[e.Slot] {
		if x.sameKey(e) {
			return true
		}
	}
	return false
}

// Slots returns the slot names in lexical order.
func (c *Catalog) Slots() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.slots))
	for s := range c.slots {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// All returns every entry, oldest first.
func (c *Catalog) All() []Entry {
	c.mu.RLock()
	var out []Entry
	for _, es := range c.slots {
		out = append(out, es...)
	}
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) && out[i].Seq == out[j].Seq {
			return out[i].Slot < out[j].Slot
		}
		return out[i].Before(out[j])
	})
	return out
}

// Find looks an entry up by file name.
func (c *Catalog) Find(name string) (Entry, bool) {
	pn, err := ParseName(filepath.Base(name))
	if err != nil {
		return Entry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.slots[pn.Slot] {
		if e.Name() == filepath.Base(name) {
			return e, true
		}
	}
	return Entry{}, false
}

// SetFingerprint caches the content fingerprint of an existing entry.
func (c *Catalog) SetFingerprint(e Entry, fp fingerprint.Fingerprint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	es := c.slots[e.Slot]
	for i := range es {
		if es[i].Path == e.Path {
			es[i].Fingerprint = fp
			return true
		}
	}
	return false
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, es := range c.slots {
		n += len(es)
	}
	return n
}
