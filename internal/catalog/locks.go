package catalog

import "sync"

// slotLocks serialises detect, write, register and prune for one slot.
type slotLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *slotLocks) get(slot string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.m[slot]
	if !ok {
		m = &sync.Mutex{}
		l.m[slot] = m
	}
	return m
}

// Lock blocks until the slot is free and returns its unlock func.
func (c *Catalog) Lock(slot string) func() {
	m := c.locks.get(slot)
	m.Lock()
	return m.Unlock
}

// TryLock takes the slot lock only if nobody holds it.
func (c *Catalog) TryLock(slot string) (func(), bool) {
	m := c.locks.get(slot)
	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}
