package watcher

import (
	"sync"
	"time"
)

// settler fires once per path after no event arrived for delay.
type settler struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*pendingFire
	fire    func(path string)
	stopped bool
}

type pendingFire struct {
	gen   uint64
	timer *time.Timer
}

func newSettler(delay time.Duration, fire func(string)) *settler {
	return &settler{delay: delay, pending: map[string]*pendingFire{}, fire: fire}
}

// touch restarts the path's quiet period.
func (s *settler) touch(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	p, ok := s.pending[path]
	if !ok {
		p = &pendingFire{}
		s.pending[path] = p
	} else {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(s.delay, func() { s.expire(path, gen) })
}

// expire ignores timers that were superseded after they had already fired.
func (s *settler) expire(path string, gen uint64) {
	s.mu.Lock()
	p, ok := s.pending[path]
	if s.stopped || !ok || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, path)
	s.mu.Unlock()

	s.fire(path)
}

func (s *settler) setDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

func (s *settler) resume() {
	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()
}

func (s *settler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for path, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, path)
	}
}
