package locks

import (
	"context"
	"sync"
	"time"
)

// LocalLocker keeps lock state in process memory with the same
// set-if-not-present-with-expiry semantics as the shared store. In a
// multi-process deployment it is advisory only.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]localEntry
}

type localEntry struct {
	expiresAt time.Time
	timer     *time.Timer
}

func CreateLocalLocker() *LocalLocker {
	return &LocalLocker{
		entries: make(map[string]localEntry),
	}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, ok := l.entries[key]; ok {
		if now.Before(entry.expiresAt) {
			return false, nil
		}
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}

	timer := time.AfterFunc(ttl, func() {
		l.expire(key)
	})

	l.entries[key] = localEntry{
		expiresAt: now.Add(ttl),
		timer:     timer,
	}
	return true, nil
}

func (l *LocalLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[key]; ok {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(l.entries, key)
	}
	return nil
}

// expire removes the entry only if it is still past due; a key re-acquired
// after expiry owns a fresh timer and must not be swept by the old one.
func (l *LocalLocker) expire(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[key]; ok && !time.Now().Before(entry.expiresAt) {
		delete(l.entries, key)
	}
}
