// Package watcher monitors the save directory and emits backup jobs.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/config"
	"github.com/raoulx24/save-archiver/internal/fsprobe"
	"github.com/raoulx24/save-archiver/internal/logging"
	"github.com/raoulx24/save-archiver/internal/mailbox"
	"github.com/raoulx24/save-archiver/internal/worker"
)

// ErrFatal means the watched directory is gone or can no longer be watched.
// Monitoring stops and has to be restarted explicitly.
var ErrFatal = errors.New("watcher failed")

// Source yields paths that were created or modified in the watched
// directory. An error wrapping ErrFatal ends the stream.
type Source interface {
	Events() <-chan string
	Errors() <-chan error
	Close() error
}

// Watcher filters source events down to tracked saves, lets bursts settle,
// and hands one job per settled save to the mailbox.
type Watcher struct {
	mu sync.RWMutex

	dir      string
	patterns []string
	mode     string
	interval time.Duration
	scratch  string
	settle   *settler

	log logging.Logger
	mb  *mailbox.Mailbox[string, worker.Job]
}

// New creates a watcher from the source configuration.
func New(cfg config.SourceConfig, log logging.Logger, mb *mailbox.Mailbox[string, worker.Job]) *Watcher {
	w := &Watcher{
		dir:      cfg.Path,
		patterns: append([]string(nil), cfg.Patterns...),
		mode:     cfg.Watch.Mode,
		interval: cfg.Watch.PollInterval,
		log:      log,
		mb:       mb,
	}
	w.settle = newSettler(cfg.Watch.SettleDelay, w.Submit)
	return w
}

func (w *Watcher) Dir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dir
}

// SetScratchDir names a directory the archiver owns where auto mode may
// write a short-lived file to check that fsnotify delivers events.
func (w *Watcher) SetScratchDir(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scratch = dir
}

// Open chooses the watching strategy based on config.
func (w *Watcher) Open() (Source, error) {
	w.mu.RLock()
	dir, mode, interval, scratch := w.dir, w.mode, w.interval, w.scratch
	w.mu.RUnlock()

	switch mode {
	case "fsnotify":
		return NewNotifySource(dir, interval)

	case "poll":
		return NewPollSource(dir, interval)

	case "auto":
		res := fsprobe.Probe(dir, scratch, fsprobe.DefaultTimeout)
		if res.FsnotifySupported {
			return NewNotifySource(dir, interval)
		}
		w.log.Warn("fsnotify disabled, polling instead", "reason", res.Reason)
		return NewPollSource(dir, interval)

	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// Run consumes src until ctx is cancelled or the source fails fatally. The
// source is closed and pending settle timers are dropped on return.
func (w *Watcher) Run(ctx context.Context, src Source) error {
	w.settle.resume()
	defer func() {
		w.settle.stop()
		if err := src.Close(); err != nil {
			w.log.Warn("closing watch source", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case p, ok := <-src.Events():
			if !ok {
				return fmt.Errorf("%w: event stream closed", ErrFatal)
			}
			if !w.Matches(p) {
				continue
			}
			w.log.Debug("change observed", "path", p)
			w.settle.touch(p)

		case err, ok := <-src.Errors():
			if !ok {
				return fmt.Errorf("%w: error stream closed", ErrFatal)
			}
			if errors.Is(err, ErrFatal) {
				return err
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// Submit queues a job for path right away. A job already pending for the
// same slot is replaced.
func (w *Watcher) Submit(path string) {
	job := worker.NewJob(path)
	w.mb.Put(job.Slot, job)
	w.log.Debug("job queued", "slot", job.Slot)
}

// Matches reports whether the base name of path is a tracked save.
func (w *Watcher) Matches(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, catalog.TempPrefix) {
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, p := range w.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// UpdateConfig applies pattern and settle delay changes to a running
// watcher. Directory and mode changes need a new source.
func (w *Watcher) UpdateConfig(cfg config.SourceConfig) {
	w.mu.Lock()
	w.patterns = append([]string(nil), cfg.Patterns...)
	w.mode = cfg.Watch.Mode
	w.interval = cfg.Watch.PollInterval
	w.mu.Unlock()

	w.settle.setDelay(cfg.Watch.SettleDelay)
}
