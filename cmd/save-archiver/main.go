package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raoulx24/save-archiver/internal/config"
	"github.com/raoulx24/save-archiver/internal/logging"
)

var (
	version = "dev"

	configPath string
	cfg        *config.Config
	logg       logging.Logger

	rootCmd = &cobra.Command{
		Use:           "save-archiver",
		Short:         "Keeps a rolling history of game save files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return loadConfig()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	rootCmd.AddCommand(runCmd, listCmd, backupCmd, restoreCmd, pruneCmd, versionCmd)
}

func loadConfig() error {
	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logging.New(c.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	cfg, logg = c, l
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
