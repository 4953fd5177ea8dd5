// Package locker enforces the one-active-session-per-user rule. The Redis
// implementation coordinates across instances; the memory implementation
// serves tests and single-instance deployments.
package locker

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is an in-process ports.SessionLocker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewMemoryLocker creates an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time)}
}

// Acquire implements ports.SessionLocker. An expired lock is treated as free.
func (l *MemoryLocker) Acquire(_ context.Context, userID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if expiry, ok := l.held[userID]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.held[userID] = time.Now().Add(ttl)
	return true, nil
}

// Release implements ports.SessionLocker.
func (l *MemoryLocker) Release(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, userID)
	return nil
}
