// Package retention deletes the oldest backups of a slot beyond a count.
package retention

import (
	"context"
	"errors"
	"fmt"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/events"
	"github.com/raoulx24/save-archiver/internal/fs"
	"github.com/raoulx24/save-archiver/internal/logging"
)

type Engine struct {
	cat    *catalog.Catalog
	fs     fs.FS
	events events.Publisher
	log    logging.Logger
}

func New(cat *catalog.Catalog, f fs.FS, pub events.Publisher, log logging.Logger) *Engine {
	if f == nil {
		f = fs.New()
	}
	if pub == nil {
		pub = events.Discard
	}
	return &Engine{cat: cat, fs: f, events: pub, log: log}
}

// Prune deletes the slot's oldest entries until at most maxKeep remain.
// maxKeep <= 0 keeps everything. An entry whose file cannot be removed stays
// catalogued and the pass moves on to the next candidate; the newest maxKeep
// entries are never candidates. The caller must hold the slot lock.
func (e *Engine) Prune(ctx context.Context, slot string, maxKeep int) ([]catalog.Entry, error) {
	if maxKeep <= 0 {
		return nil, nil
	}

	entries := e.cat.Entries(slot)
	excess := len(entries) - maxKeep
	if excess <= 0 {
		return nil, nil
	}

	var (
		pruned []catalog.Entry
		errs   []error
	)
	for _, ent := range entries[:excess] {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if err := e.fs.Remove(ctx, ent.Path); err != nil {
			e.log.Warn("retention: could not delete backup", "backup", ent.Name(), "error", err)
			errs = append(errs, fmt.Errorf("deleting %s: %w", ent.Name(), err))
			continue
		}

		e.cat.Remove(ent)
		pruned = append(pruned, ent)
		e.log.Info("retention: pruned backup", "slot", slot, "backup", ent.Name())
		e.events.Publish(events.Event{Kind: events.BackupPruned, Slot: slot, Entry: ent})
	}

	return pruned, errors.Join(errs...)
}

// PruneAll applies Prune to every catalogued slot, taking each slot lock.
func (e *Engine) PruneAll(ctx context.Context, maxKeep int) ([]catalog.Entry, error) {
	var (
		all  []catalog.Entry
		errs []error
	)
	for _, slot := range e.cat.Slots() {
		unlock := e.cat.Lock(slot)
		pruned, err := e.Prune(ctx, slot, maxKeep)
		unlock()

		all = append(all, pruned...)
		if err != nil {
			errs = append(errs, fmt.Errorf("slot %s: %w", slot, err))
		}
	}
	return all, errors.Join(errs...)
}
