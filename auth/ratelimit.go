package auth

import (
	"context"
	"time"
)

// AttemptStore persists failed login attempts per client key.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, key string, at time.Time) error
	AttemptsSince(ctx context.Context, key string, since time.Time) ([]time.Time, error)
	ResetAttempts(ctx context.Context, key string) error
	PurgeAttempts(ctx context.Context, before time.Time) (int, error)
}

// =============================================================================
// RATE LIMITER - Sliding window of failed attempts per client
// =============================================================================

// RateLimiter allows at most MaxAttempts failed logins per client within
// any Window. An attempt at time a counts while now - a < Window.
type RateLimiter struct {
	store       AttemptStore
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewRateLimiter creates a limiter backed by store.
func NewRateLimiter(store AttemptStore, maxAttempts int, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, maxAttempts: maxAttempts, window: window, now: time.Now}
}

// WithClock returns a copy of l using now as its clock.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	copied := *l
	copied.now = now
	return &copied
}

// Window returns the sliding window length.
func (l *RateLimiter) Window() time.Duration {
	return l.window
}

func (l *RateLimiter) recent(ctx context.Context, key string) ([]time.Time, time.Time, error) {
	now := l.now()
	attempts, err := l.store.AttemptsSince(ctx, key, now.Add(-l.window).Add(time.Nanosecond))
	return attempts, now, err
}

// Limited reports whether key has no attempts left.
func (l *RateLimiter) Limited(ctx context.Context, key string) (bool, error) {
	attempts, _, err := l.recent(ctx, key)
	if err != nil {
		return false, err
	}
	return len(attempts) >= l.maxAttempts, nil
}

// Record stores one failed attempt for key.
func (l *RateLimiter) Record(ctx context.Context, key string) error {
	return l.store.RecordAttempt(ctx, key, l.now())
}

// Reset forgets every attempt for key, after a successful login.
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	return l.store.ResetAttempts(ctx, key)
}

// Remaining returns how many failed attempts key may still make.
func (l *RateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	attempts, _, err := l.recent(ctx, key)
	if err != nil {
		return 0, err
	}
	return max(l.maxAttempts-len(attempts), 0), nil
}

// RetryAfter returns how long key must wait before its oldest counted
// attempt leaves the window. Zero when key is not limited.
func (l *RateLimiter) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	attempts, now, err := l.recent(ctx, key)
	if err != nil {
		return 0, err
	}
	if len(attempts) < l.maxAttempts || len(attempts) == 0 {
		return 0, nil
	}
	return max(attempts[0].Add(l.window).Sub(now), 0), nil
}

// Cleanup drops attempts that no longer count for any key.
func (l *RateLimiter) Cleanup(ctx context.Context) (int, error) {
	return l.store.PurgeAttempts(ctx, l.now().Add(-l.window).Add(time.Nanosecond))
}
