// Package keymutex provides mutual exclusion scoped to a string key. The
// engine uses it for the per-student and per-class critical sections around
// aggregate recomputation: operations on different keys proceed in parallel,
// operations on the same key serialize. Single-process scope is sufficient
// because each class is owned by one engine instance.
// No external dependencies - uses only standard library.
package keymutex

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock cannot be acquired before the
// context deadline.
var ErrLockTimeout = errors.New("keymutex: lock acquisition timed out")

// Map is a collection of per-key mutexes. Mutexes are created lazily and
// removed again once no goroutine holds or waits on them, so the map stays
// bounded by the number of concurrently contended keys.
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{} // 1-slot semaphore acting as the mutex
	refs int
}

// New creates an empty mutex map.
func New() *Map {
	return &Map{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is held or the context
// is done. On success it returns the unlock function; the caller must invoke
// it exactly once.
func (m *Map) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			m.release(key, e)
		}, nil
	case <-ctx.Done():
		m.release(key, e)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, ctx.Err()
	}
}

// LockWithTimeout acquires the mutex for key with an acquisition timeout
// layered onto the parent context.
func (m *Map) LockWithTimeout(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		return m.Lock(ctx, key)
	}
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.Lock(lockCtx, key)
}

// release drops one reference to a key's entry and frees it when unused.
func (m *Map) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len returns the number of keys currently tracked. Intended for tests and
// metrics.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
