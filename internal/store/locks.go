// ABOUTME: Keyed mutex arena serializing appends per conversation
// ABOUTME: Avoids a global lock so distinct conversations append in parallel

package store

import "sync"

// lockTable hands out one mutex per key. Locks are created on first use
// and kept for the life of the table; conversation counts are bounded by
// the store's lifetime so no eviction is needed here.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for key, creating it if needed.
func (t *lockTable) get(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	return l
}
