package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/config"
	"github.com/raoulx24/save-archiver/internal/events"
	"github.com/raoulx24/save-archiver/internal/metrics"
	"github.com/raoulx24/save-archiver/internal/monitor"
)

var errStopped = errors.New("monitoring stopped unexpectedly")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the save directory and back up every change",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMonitor(cmd.Context())
	},
}

func runMonitor(parent context.Context) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bus := events.NewBus()
	bus.Subscribe(activityLog(logg))
	bus.Subscribe(metrics.Observe)

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, logg); err != nil {
				logg.Error("metrics server failed", "error", err)
			}
		}()
	}

	cat := catalog.New(cfg.Destination.Path, nil)
	m := monitor.New(cfg, nil, cat, bus, logg)
	if err := m.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	// Hot reload on SIGHUP restarts monitoring with the new settings
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			logg.Info("shutting down...")
			m.Stop()
			return nil

		case <-hup:
			newCfg, err := config.Load(configPath)
			if err != nil {
				logg.Error("config reload failed", "error", err)
				continue
			}
			if err := m.Reload(ctx, newCfg); err != nil {
				logg.Error("restart after reload failed", "error", err)
				return err
			}
			cfg = newCfg
			logg.Info("config reloaded")

		case <-m.Done():
			if err := m.Err(); err != nil {
				return errors.Join(errStopped, err)
			}
			return nil
		}
	}
}
