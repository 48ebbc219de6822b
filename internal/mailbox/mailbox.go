package mailbox

import (
	"context"
	"sync"
)

// Mailbox holds at most one pending job per key; the latest job for a key
// always wins. Keys are handed out in the order they first became pending.
// Put never blocks, so the watcher can keep coalescing while workers are busy.
type Mailbox[K comparable, T any] struct {
	mu    sync.Mutex
	order []K
	jobs  map[K]T
	ready chan struct{}
}

// New creates an empty mailbox.
func New[K comparable, T any]() *Mailbox[K, T] {
	return &Mailbox[K, T]{
		jobs:  map[K]T{},
		ready: make(chan struct{}, 1),
	}
}

// Put stores a job under key, replacing any job already pending for it.
func (m *Mailbox[K, T]) Put(key K, j T) {
	m.mu.Lock()
	if _, ok := m.jobs[key]; !ok {
		m.order = append(m.order, key)
	}
	m.jobs[key] = j
	m.mu.Unlock()
	m.signal()
}

func (m *Mailbox[K, T]) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Take blocks until a job is available or ctx is done.
func (m *Mailbox[K, T]) Take(ctx context.Context) (T, bool) {
	for {
		if j, ok := m.TryTake(); ok {
			return j, true
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// TryTake returns the oldest pending job without blocking.
func (m *Mailbox[K, T]) TryTake() (T, bool) {
	m.mu.Lock()
	if len(m.order) == 0 {
		m.mu.Unlock()
		var zero T
		return zero, false
	}

	key := m.order[0]
	m.order = m.order[1:]
	j := m.jobs[key]
	delete(m.jobs, key)
	more := len(m.order) > 0
	m.mu.Unlock()

	// another worker may be waiting for the remaining keys
	if more {
		m.signal()
	}
	return j, true
}

// Len reports how many keys have a pending job.
func (m *Mailbox[K, T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
