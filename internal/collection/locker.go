package collection

import "sync"

// Locker hands out one mutex per collection name so work on the same
// collection is serialized while different collections proceed in parallel.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until name is free and returns the matching unlock func.
func (l *Locker) Lock(name string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
