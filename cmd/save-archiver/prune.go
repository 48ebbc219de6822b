package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/events"
	"github.com/raoulx24/save-archiver/internal/retention"
)

var pruneKeep int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply retention to every slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cat := catalog.New(cfg.Destination.Path, nil)
		if _, err := cat.Rebuild(ctx); err != nil {
			return err
		}

		keep := cfg.Destination.Retention.MaxKeep
		if cmd.Flags().Changed("keep") {
			keep = pruneKeep
		}

		bus := events.NewBus()
		bus.Subscribe(activityLog(logg))

		pruned, err := retention.New(cat, nil, bus, logg).PruneAll(ctx, keep)
		fmt.Fprintf(cmd.OutOrStdout(), "%d backups deleted\n", len(pruned))
		return err
	},
}

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "override retention.maxKeep (<= 0 keeps everything)")
}
