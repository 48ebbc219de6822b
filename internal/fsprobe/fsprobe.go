// Package fsprobe decides whether fsnotify can be trusted for the save
// directory. Some filesystems (network shares, FUSE mounts) accept a watch
// and then never report anything, so registering a watch is not enough:
// a file is written in a scratch directory owned by the archiver and the
// matching event has to arrive. The save directory itself is never written.
package fsprobe

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/raoulx24/save-archiver/internal/catalog"
)

// DefaultTimeout bounds the wait for the scratch write event.
const DefaultTimeout = 2 * time.Second

// Result reports whether fsnotify is usable and why not.
type Result struct {
	FsnotifySupported bool
	Reason            string
}

// Probe registers a watch on dir and, when scratch is set, checks that a
// write in scratch is reported within timeout. Scratch files use the
// catalog temp prefix so a crash mid-check leaves nothing that gets
// catalogued.
func Probe(dir, scratch string, timeout time.Duration) Result {
	if res, ok := checkDir(dir); !ok {
		return res
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return Result{false, fmt.Sprintf("fsnotify unavailable: %v", err)}
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return Result{false, fmt.Sprintf("cannot watch %s: %v", dir, err)}
	}
	if scratch == "" {
		return Result{true, ""}
	}

	if res, ok := checkDir(scratch); !ok {
		return res
	}
	if filepath.Clean(scratch) != filepath.Clean(dir) {
		if err := w.Add(scratch); err != nil {
			return Result{false, fmt.Sprintf("cannot watch %s: %v", scratch, err)}
		}
	}
	return roundTrip(w, scratch, timeout)
}

func checkDir(dir string) (Result, bool) {
	st, err := os.Stat(dir)
	if err != nil {
		return Result{false, fmt.Sprintf("stat failed: %v", err)}, false
	}
	if !st.IsDir() {
		return Result{false, dir + " is not a directory"}, false
	}
	return Result{}, true
}

// roundTrip writes a scratch file and waits for fsnotify to report it.
func roundTrip(w *fsnotify.Watcher, scratch string, timeout time.Duration) Result {
	name := filepath.Join(scratch, catalog.TempPrefix+uuid.NewString()+"-watch")
	defer os.Remove(name)

	if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
		return Result{false, fmt.Sprintf("cannot write in %s: %v", scratch, err)}
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return Result{false, "watcher closed"}
			}
			if filepath.Clean(ev.Name) == name && ev.Has(fsnotify.Create|fsnotify.Write) {
				return Result{true, ""}
			}
		case err, ok := <-w.Errors:
			if ok {
				return Result{false, fmt.Sprintf("watch error: %v", err)}
			}
		case <-deadline.C:
			return Result{false, fmt.Sprintf("no write event within %s", timeout)}
		}
	}
}
