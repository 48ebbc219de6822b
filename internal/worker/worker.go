// Package worker runs the backup pipeline: detect, write, register, prune.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/events"
	"github.com/raoulx24/save-archiver/internal/fs"
	"github.com/raoulx24/save-archiver/internal/logging"
	"github.com/raoulx24/save-archiver/internal/mailbox"
	"github.com/raoulx24/save-archiver/internal/retention"
)

// Settings are the hot-reloadable knobs of the pipeline.
type Settings struct {
	Compress bool
	MaxKeep  int
}

// Worker turns jobs into backups.
type Worker struct {
	mu       sync.RWMutex
	settings Settings

	cat       *catalog.Catalog
	detector  *Detector
	writer    *Writer
	retention *retention.Engine
	events    events.Publisher
	log       logging.Logger
	mb        *mailbox.Mailbox[string, Job]
}

// New wires a worker. mb may be nil when jobs are only passed to Handle.
func New(s Settings, cat *catalog.Catalog, f fs.FS, p fs.Policy, pub events.Publisher, log logging.Logger, mb *mailbox.Mailbox[string, Job], opts ...WriterOption) *Worker {
	log.Debug("creating worker")
	if f == nil {
		f = fs.New()
	}
	if pub == nil {
		pub = events.Discard
	}
	return &Worker{
		settings:  s,
		cat:       cat,
		detector:  NewDetector(cat, f, p, log),
		writer:    NewWriter(cat, f, p, log, opts...),
		retention: retention.New(cat, f, pub, log),
		events:    pub,
		log:       log,
		mb:        mb,
	}
}

func (w *Worker) UpdateConfig(s Settings) {
	w.log.Debug("entering Worker.UpdateConfig()")
	w.mu.Lock()
	w.settings = s
	w.mu.Unlock()
}

// Run starts n goroutines taking jobs from the mailbox and blocks until ctx
// is cancelled and every in-flight job has returned.
func (w *Worker) Run(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	w.log.Info("starting workers", "count", n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := w.mb.Take(ctx)
				if !ok {
					return
				}
				_ = w.Handle(ctx, job)
			}
		}()
	}
	wg.Wait()
}

// Handle runs the whole pipeline for one save under the slot lock. Exactly
// one of backup_created, backup_skipped or backup_failed is published unless
// ctx was cancelled first.
func (w *Worker) Handle(ctx context.Context, job Job) error {
	unlock := w.cat.Lock(job.Slot)
	defer unlock()

	w.mu.RLock()
	s := w.settings
	w.mu.RUnlock()

	log := w.log.With("slot", job.Slot)

	fp, err := w.detector.Check(ctx, job.Path)
	if err != nil {
		return w.fail(ctx, log, job.Slot, err)
	}

	if !w.detector.ShouldBackup(job.Slot, fp) {
		log.Debug("backup skipped", "reason", events.ReasonUnchanged, "fingerprint", fp.Short())
		w.events.Publish(events.Event{Kind: events.BackupSkipped, Slot: job.Slot, Reason: events.ReasonUnchanged})
		return nil
	}

	entry, err := w.writer.CreateBackup(ctx, job.Slot, job.Path, s.Compress)
	if err != nil {
		return w.fail(ctx, log, job.Slot, err)
	}

	log.Info("backup created", "backup", entry.Name(), "size", entry.Size)
	w.events.Publish(events.Event{Kind: events.BackupCreated, Slot: job.Slot, Entry: entry})

	if _, err := w.retention.Prune(ctx, job.Slot, s.MaxKeep); err != nil {
		log.Warn("retention incomplete", "error", err)
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, log logging.Logger, slot string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Debug("backup aborted", "error", err)
		return err
	}
	log.Error("backup failed", "error", err)
	w.events.Publish(events.Event{Kind: events.BackupFailed, Slot: slot, Reason: err.Error(), Err: err})
	return err
}
