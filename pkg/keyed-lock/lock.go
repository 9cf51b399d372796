// Package keyedlock provides a per-key mutual exclusion table.
//
// It serializes mutating operations on a single asset while letting
// operations on unrelated assets proceed fully in parallel. There is no
// global lock on the mutation path; the table mutex only guards the map
// itself.
package keyedlock

import "sync"

// Table tracks which keys currently have an operation in flight.
type Table struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func New() *Table {
	return &Table{held: make(map[string]struct{})}
}

// TryLock acquires the lock for key without blocking.
// It reports whether the lock was acquired.
func (t *Table) TryLock(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.held[key]; ok {
		return false
	}
	t.held[key] = struct{}{}
	return true
}

// Unlock releases the lock for key. Unlocking a key that is not held is a
// no-op.
func (t *Table) Unlock(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, key)
}
