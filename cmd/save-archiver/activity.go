package main

import (
	"github.com/raoulx24/save-archiver/internal/events"
	"github.com/raoulx24/save-archiver/internal/logging"
)

// activityLog renders core events as the user-facing activity log.
func activityLog(log logging.Logger) events.Handler {
	log = log.With("component", "activity")
	return func(ev events.Event) {
		switch ev.Kind {
		case events.BackupCreated:
			log.Info("backup created", "slot", ev.Slot, "backup", ev.Entry.Name())
		case events.BackupFailed:
			log.Error("backup failed", "slot", ev.Slot, "reason", ev.Reason)
		case events.BackupSkipped:
			log.Debug("backup skipped", "slot", ev.Slot, "reason", ev.Reason)
		case events.BackupPruned:
			log.Info("old backup deleted", "slot", ev.Slot, "backup", ev.Entry.Name())
		case events.MonitoringStarted:
			log.Info("monitoring started")
		case events.MonitoringStopped:
			if ev.Err != nil {
				log.Error("monitoring stopped", "reason", ev.Reason)
			} else {
				log.Info("monitoring stopped", "reason", ev.Reason)
			}
		case events.InitialScanComplete:
			log.Info("initial scan complete", "saves", ev.SlotCount)
		}
	}
}
