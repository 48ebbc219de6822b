package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raoulx24/save-archiver/internal/catalog"
)

var listCmd = &cobra.Command{
	Use:   "list [slot]",
	Short: "List backups, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.New(cfg.Destination.Path, nil)
		if _, err := cat.Rebuild(cmd.Context()); err != nil {
			return err
		}

		var entries []catalog.Entry
		if len(args) == 1 {
			entries = cat.Entries(args[0])
		} else {
			entries = cat.All()
		}
		slices.Reverse(entries)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSLOT\tCREATED\tSIZE\tFORMAT")
		for _, e := range entries {
			format := "raw"
			if e.Compressed {
				format = "zip"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.Name(), e.Slot, e.Created.Local().Format("2006-01-02 15:04:05"), e.Size, format)
		}
		return tw.Flush()
	},
}
