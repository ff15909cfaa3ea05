// Package keylock provides named mutual exclusion with fail-fast
// acquisition. One lock per string key; an acquire on a held key reports
// contention immediately instead of queueing, so callers stuck behind a
// long-running workflow can decide for themselves whether to retry.
package keylock

import "sync"

// KeyLock is a table of per-key try-locks. The zero value is not usable;
// use New.
type KeyLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func New() *KeyLock {
	return &KeyLock{
		held: make(map[string]struct{}),
	}
}

// TryAcquire attempts to take the lock for key without blocking. It
// reports whether the lock was acquired.
func (l *KeyLock) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// Release releases the lock for key. Releasing a key that is not held is a
// no-op, so deferred releases on error paths are always safe.
func (l *KeyLock) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
