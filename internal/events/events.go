// Package events carries what the backup engine reports to the outside:
// tray notifications, the activity log, metrics and tests all subscribe here.
package events

import (
	"sync"
	"time"

	"github.com/raoulx24/save-archiver/internal/catalog"
)

type Kind int

const (
	BackupCreated Kind = iota + 1
	BackupFailed
	BackupSkipped
	BackupPruned
	MonitoringStarted
	MonitoringStopped
	InitialScanComplete
)

func (k Kind) String() string {
	switch k {
	case BackupCreated:
		return "backup_created"
	case BackupFailed:
		return "backup_failed"
	case BackupSkipped:
		return "backup_skipped"
	case BackupPruned:
		return "backup_pruned"
	case MonitoringStarted:
		return "monitoring_started"
	case MonitoringStopped:
		return "monitoring_stopped"
	case InitialScanComplete:
		return "initial_scan_complete"
	default:
		return "unknown"
	}
}

// ReasonUnchanged is the skip reason when content matches the latest backup.
const ReasonUnchanged = "unchanged"

// Event is one notification. Fields not relevant to Kind are zero.
type Event struct {
	Kind      Kind
	Time      time.Time
	Slot      string
	Entry     catalog.Entry
	Reason    string
	Err       error
	SlotCount int
}

// Publisher is what the engine needs to report events.
type Publisher interface {
	Publish(Event)
}

// Handler receives events synchronously on the publisher's goroutine and
// must not block.
type Handler func(Event)

// Bus fans events out to any number of handlers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
	now    func() time.Time
}

func NewBus() *Bus {
	return &Bus{subs: map[int]Handler{}, now: time.Now}
}

// Subscribe registers h and returns a func that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = b.now()
	}

	b.mu.RLock()
	hs := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Recorder collects events; it is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *Recorder) Publish(ev Event) { r.Handle(ev) }

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Of returns the recorded events of one kind.
func (r *Recorder) Of(k Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}
