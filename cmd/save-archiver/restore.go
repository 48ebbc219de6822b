package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/restore"
)

var (
	restoreTo    string
	noSafetyCopy bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-name>",
	Short: "Restore a backup over its save, or to --to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cat := catalog.New(cfg.Destination.Path, nil)
		if _, err := cat.Rebuild(ctx); err != nil {
			return err
		}

		entry, ok := cat.Find(args[0])
		if !ok {
			return fmt.Errorf("no backup named %q", args[0])
		}

		svc := restore.New(cat, nil, cfg.Retry.Policy(), cfg.Source.Path, logg)
		opts := restore.Options{SafetyCopy: cfg.Restore.SafetyCopy && !noSafetyCopy}

		var (
			res restore.Result
			err error
		)
		if restoreTo != "" {
			res, err = svc.Restore(ctx, entry, restoreTo, opts)
		} else {
			res, err = svc.RestoreInPlace(ctx, entry, opts)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "restored %s to %s\n", entry.Name(), res.Dest)
		if res.SafetyCopy != "" {
			fmt.Fprintf(out, "previous save kept as %s\n", res.SafetyCopy)
		}
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreTo, "to", "", "restore to this path instead of the live save")
	restoreCmd.Flags().BoolVar(&noSafetyCopy, "no-safety-copy", false, "overwrite the live save without keeping a copy")
}
