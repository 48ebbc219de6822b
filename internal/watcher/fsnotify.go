package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// notifySource turns fsnotify events into changed paths. The directory is
// also stat'ed every interval because some platforms never report the
// removal of the watched directory itself.
type notifySource struct {
	dir    string
	fw     *fsnotify.Watcher
	events chan string
	errs   chan error
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewNotifySource watches dir non-recursively.
func NewNotifySource(dir string, interval time.Duration) (Source, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("%w: watching %s: %w", ErrFatal, dir, err)
	}

	s := &notifySource{
		dir:    filepath.Clean(dir),
		fw:     fw,
		events: make(chan string, 64),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop(interval)
	return s, nil
}

func (s *notifySource) Events() <-chan string { return s.events }
func (s *notifySource) Errors() <-chan error  { return s.errs }

func (s *notifySource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.fw.Close()
		s.wg.Wait()
	})
	return err
}

func (s *notifySource) loop(interval time.Duration) {
	defer s.wg.Done()

	if interval <= 0 {
		interval = time.Second
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.fw.Events:
			if !ok {
				s.fatal(fmt.Errorf("%w: fsnotify event channel closed", ErrFatal))
				return
			}
			if filepath.Clean(ev.Name) == s.dir && ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				s.fatal(fmt.Errorf("%w: %s was removed", ErrFatal, s.dir))
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			select {
			case s.events <- ev.Name:
			case <-s.done:
				return
			}

		case err, ok := <-s.fw.Errors:
			if !ok {
				s.fatal(fmt.Errorf("%w: fsnotify error channel closed", ErrFatal))
				return
			}
			s.report(err)

		case <-heartbeat.C:
			if _, err := os.Stat(s.dir); err != nil && dirGone(err) {
				s.fatal(fmt.Errorf("%w: %s: %w", ErrFatal, s.dir, err))
				return
			}
		}
	}
}

func (s *notifySource) fatal(err error) {
	select {
	case s.errs <- err:
	case <-s.done:
	}
}

// report passes on a non-fatal error unless one is already waiting.
func (s *notifySource) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}
