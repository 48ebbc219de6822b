// Package monitor owns the monitoring lifecycle: catalog rebuild, initial
// scan, live watching with a worker pool, optional rescans, and stop.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/raoulx24/save-archiver/internal/catalog"
	"github.com/raoulx24/save-archiver/internal/config"
	"github.com/raoulx24/save-archiver/internal/events"
	"github.com/raoulx24/save-archiver/internal/fs"
	"github.com/raoulx24/save-archiver/internal/logging"
	"github.com/raoulx24/save-archiver/internal/mailbox"
	"github.com/raoulx24/save-archiver/internal/watcher"
	"github.com/raoulx24/save-archiver/internal/worker"
)

// ReasonUser is the stop reason of an explicit Stop.
const ReasonUser = "stopped by user"

// ErrRunning is returned by Start on a monitor that is already running.
var ErrRunning = errors.New("monitoring already running")

type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

type Monitor struct {
	mu sync.Mutex

	cfg    *config.Config
	fs     fs.FS
	cat    *catalog.Catalog
	events events.Publisher
	log    logging.Logger
	opts   []worker.WriterOption

	state  State
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

type Option func(*Monitor)

// WithWriterOptions passes options to the backup writer, e.g. a test clock.
func WithWriterOptions(opts ...worker.WriterOption) Option {
	return func(m *Monitor) { m.opts = append(m.opts, opts...) }
}

// New creates a stopped monitor. cat must index cfg.Destination.Path.
func New(cfg *config.Config, f fs.FS, cat *catalog.Catalog, pub events.Publisher, log logging.Logger, opts ...Option) *Monitor {
	if f == nil {
		f = fs.WithPolicy(cfg.Retry.Policy())
	}
	if pub == nil {
		pub = events.Discard
	}
	done := make(chan struct{})
	close(done)
	m := &Monitor{cfg: cfg, fs: f, cat: cat, events: pub, log: log, done: done}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed when the current run has fully stopped.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Err returns the fatal error that ended the last run, if any.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Start rebuilds the catalog, opens the watch source, backs up every
// tracked save that differs from its latest backup and then switches to
// live mode in the background. Errors before live mode leave the monitor
// stopped.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Running {
		m.mu.Unlock()
		return ErrRunning
	}
	cfg, cat := m.cfg, m.cat
	m.mu.Unlock()

	log := m.log.With("saves", cfg.Source.Path, "backups", cfg.Destination.Path)

	stats, err := cat.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding catalog: %w", err)
	}
	log.Info("catalog rebuilt", "entries", stats.Entries, "slots", stats.Slots, "ignored", len(stats.Ignored), "temps", len(stats.Temps))
	if removed, err := cat.RemoveStaleTemps(ctx, catalog.StaleTempAge); err != nil {
		log.Warn("removing stale temp files", "error", err)
	} else if len(removed) > 0 {
		log.Info("removed stale temp files", "count", len(removed))
	}

	mb := mailbox.New[string, worker.Job]()
	w := worker.New(worker.Settings{
		Compress: cfg.Destination.Compress,
		MaxKeep:  cfg.Destination.Retention.MaxKeep,
	}, cat, m.fs, cfg.Retry.Policy(), m.events, m.log, mb, m.opts...)
	watch := watcher.New(cfg.Source, m.log, mb)
	watch.SetScratchDir(cfg.Destination.Path)

	src, err := watch.Open()
	if err != nil {
		return fmt.Errorf("opening watcher: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.state = Running
	m.cancel = cancel
	m.done = done
	m.err = nil
	m.mu.Unlock()

	m.events.Publish(events.Event{Kind: events.MonitoringStarted})
	log.Info("monitoring started")

	// saves written during the scan settle into the mailbox and are picked
	// up once the workers start
	watchErr := make(chan error, 1)
	go func() { watchErr <- watch.Run(runCtx, src) }()

	slots, err := initialScan(ctx, runCtx, watch, w, cfg.Workers)
	if err != nil {
		cancel()
		<-watchErr
		if ctx.Err() != nil {
			m.finish(cancel, done, nil)
		} else {
			m.finish(cancel, done, err)
		}
		return err
	}
	m.events.Publish(events.Event{Kind: events.InitialScanComplete, SlotCount: slots})
	log.Info("initial scan complete", "saves", slots)

	go m.live(runCtx, cancel, done, cfg, watch, w, watchErr)
	return nil
}

// initialScan runs the pipeline once for every tracked save, bounded by the
// worker count. Per-slot failures are reported as events and do not stop
// the scan.
func initialScan(ctx, runCtx context.Context, watch *watcher.Watcher, w *worker.Worker, workers int) (int, error) {
	paths, err := watch.Scan()
	if err != nil {
		return 0, err
	}

	scanCtx, cancel := context.WithCancel(runCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	g, gctx := errgroup.WithContext(scanCtx)
	g.SetLimit(max(workers, 1))
	for _, p := range paths {
		p := p
		g.Go(func() error {
			_ = w.Handle(gctx, worker.NewJob(p))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(paths), nil
}

func (m *Monitor) live(ctx context.Context, cancel context.CancelFunc, done chan struct{}, cfg *config.Config, watch *watcher.Watcher, w *worker.Worker, watchErr <-chan error) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx, cfg.Workers)
	}()

	var sched *cron.Cron
	if spec := cfg.Source.Watch.RescanSchedule; spec != "" {
		sched = cron.New()
		_, err := sched.AddFunc(spec, func() { rescan(watch, m.log) })
		if err != nil {
			m.log.Warn("rescan schedule ignored", "schedule", spec, "error", err)
		} else {
			sched.Start()
		}
	}

	err := <-watchErr

	if sched != nil {
		<-sched.Stop().Done()
	}
	cancel()
	wg.Wait()

	m.finish(cancel, done, err)
}

// rescan queues every tracked save; unchanged ones are skipped by the
// pipeline.
func rescan(watch *watcher.Watcher, log logging.Logger) {
	paths, err := watch.Scan()
	if err != nil {
		log.Warn("rescan failed", "error", err)
		return
	}
	log.Debug("rescan", "saves", len(paths))
	for _, p := range paths {
		watch.Submit(p)
	}
}

// finish publishes monitoring_stopped exactly once per run.
func (m *Monitor) finish(cancel context.CancelFunc, done chan struct{}, err error) {
	cancel()

	reason := ReasonUser
	if err != nil {
		reason = err.Error()
		m.log.Error("monitoring stopped unexpectedly", "error", err)
	} else {
		m.log.Info("monitoring stopped")
	}

	m.mu.Lock()
	m.state = Stopped
	m.err = err
	m.mu.Unlock()

	m.events.Publish(events.Event{Kind: events.MonitoringStopped, Reason: reason, Err: err})
	close(done)
}

// Stop cancels the current run and waits until in-flight backups have
// finished or aborted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Reload stops monitoring, swaps the configuration and starts again.
func (m *Monitor) Reload(ctx context.Context, cfg *config.Config) error {
	m.Stop()

	m.mu.Lock()
	if cfg.Destination.Path != m.cfg.Destination.Path {
		m.cat = catalog.New(cfg.Destination.Path, m.fs)
	}
	m.cfg = cfg
	m.mu.Unlock()

	return m.Start(ctx)
}

// Catalog returns the catalog the monitor currently writes to.
func (m *Monitor) Catalog() *catalog.Catalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cat
}
