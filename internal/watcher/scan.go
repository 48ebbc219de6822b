package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Scan lists the tracked saves currently in the directory. A missing or
// unreadable directory is fatal.
func (w *Watcher) Scan() ([]string, error) {
	dir := w.Dir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFatal, dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if w.Matches(full) {
			out = append(out, full)
		}
	}
	sort.Strings(out)
	return out, nil
}

// dirGone reports whether err means the watched directory itself is lost.
func dirGone(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission)
}
