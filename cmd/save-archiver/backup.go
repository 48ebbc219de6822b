package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/events"
	"github.com/raoulx24/save-archiver/internal/watcher"
	"github.com/raoulx24/save-archiver/internal/worker"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up every tracked save that changed since its latest backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cat := catalog.New(cfg.Destination.Path, nil)
		if _, err := cat.Rebuild(ctx); err != nil {
			return err
		}

		bus := events.NewBus()
		bus.Subscribe(activityLog(logg))

		w := worker.New(worker.Settings{
			Compress: cfg.Destination.Compress,
			MaxKeep:  cfg.Destination.Retention.MaxKeep,
		}, cat, nil, cfg.Retry.Policy(), bus, logg, nil)

		paths, err := watcher.New(cfg.Source, logg, nil).Scan()
		if err != nil {
			return err
		}

		var errs []error
		for _, p := range paths {
			if err := w.Handle(ctx, worker.NewJob(p)); err != nil {
				errs = append(errs, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d saves checked, %d failed\n", len(paths), len(errs))
		return errors.Join(errs...)
	},
}
