package ports

import (
	"context"
	"time"
)

// SessionLocker enforces the one-active-session-per-user rule across
// instances. Acquire returns false when the user already holds a session;
// the TTL bounds lock leakage if a holder crashes.
type SessionLocker interface {
	Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID string) error
}
