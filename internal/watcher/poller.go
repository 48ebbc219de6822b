package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type stamp struct {
	mod  time.Time
	size int64
}

// pollSource compares directory listings every interval. The first listing
// is a silent baseline.
type pollSource struct {
	dir      string
	interval time.Duration
	seen     map[string]stamp
	events   chan string
	errs     chan error
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewPollSource polls dir on a fixed interval.
func NewPollSource(dir string, interval time.Duration) (Source, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	s := &pollSource{
		dir:      dir,
		interval: interval,
		events:   make(chan string, 64),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}

	seen, err := s.list()
	if err != nil {
		return nil, err
	}
	s.seen = seen

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

func (s *pollSource) Events() <-chan string { return s.events }
func (s *pollSource) Errors() <-chan error  { return s.errs }

func (s *pollSource) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *pollSource) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.poll() {
				return
			}
		}
	}
}

// poll emits changed paths and returns false after a fatal error.
func (s *pollSource) poll() bool {
	now, err := s.list()
	if err != nil {
		if !errors.Is(err, ErrFatal) {
			select {
			case s.errs <- err:
			default:
			}
			return true
		}
		select {
		case s.errs <- err:
		case <-s.done:
		}
		return false
	}

	for p, st := range now {
		if old, ok := s.seen[p]; ok && old.mod.Equal(st.mod) && old.size == st.size {
			continue
		}
		select {
		case s.events <- p:
		case <-s.done:
			return false
		}
	}
	s.seen = now
	return true
}

func (s *pollSource) list() (map[string]stamp, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if dirGone(err) {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrFatal, s.dir, err)
		}
		return nil, fmt.Errorf("reading %s: %w", s.dir, err)
	}

	out := make(map[string]stamp, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between listing and stat
			continue
		}
		out[filepath.Join(s.dir, e.Name())] = stamp{mod: info.ModTime(), size: info.Size()}
	}
	return out, nil
}
