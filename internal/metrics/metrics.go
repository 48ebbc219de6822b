// Package metrics exposes Prometheus counters fed from the event bus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raoulx24/save-archiver/internal/events"
	"github.com/raoulx24/save-archiver/internal/logging"
)

var (
	// eventsTotal counts core events by kind
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "save_archiver_events_total",
		Help: "Core events by kind",
	}, []string{"kind"})

	// backupBytes sums the on-disk size of created backups
	backupBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "save_archiver_backup_bytes_total",
		Help: "Bytes written to the backup directory by created backups",
	})

	// monitoringUp is 1 while the watcher is live
	monitoringUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "save_archiver_monitoring_up",
		Help: "Whether save monitoring is running",
	})
)

// Observe is an events.Handler.
func Observe(ev events.Event) {
	eventsTotal.WithLabelValues(ev.Kind.String()).Inc()

	switch ev.Kind {
	case events.BackupCreated:
		backupBytes.Add(float64(ev.Entry.Size))
	case events.MonitoringStarted:
		monitoringUp.Set(1)
	case events.MonitoringStopped:
		monitoringUp.Set(0)
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
