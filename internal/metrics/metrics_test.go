package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/events"
)

func TestObserveCountsEvents(t *testing.T) {
	created := testutil.ToFloat64(eventsTotal.WithLabelValues("backup_created"))
	bytes := testutil.ToFloat64(backupBytes)

	Observe(events.Event{Kind: events.BackupCreated, Entry: catalog.Entry{Size: 128}})
	Observe(events.Event{Kind: events.BackupCreated, Entry: catalog.Entry{Size: 64}})

	assert.Equal(t, created+2, testutil.ToFloat64(eventsTotal.WithLabelValues("backup_created")))
	assert.Equal(t, bytes+192, testutil.ToFloat64(backupBytes))
}

func TestObserveTracksMonitoringState(t *testing.T) {
	Observe(events.Event{Kind: events.MonitoringStarted})
	assert.Equal(t, 1.0, testutil.ToFloat64(monitoringUp))

	Observe(events.Event{Kind: events.MonitoringStopped, Reason: "stopped by user"})
	assert.Equal(t, 0.0, testutil.ToFloat64(monitoringUp))
}
