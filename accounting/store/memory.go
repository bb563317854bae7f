// Package store provides in-memory UserStore and AttemptStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quelio/engine/accounting"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	users    map[string]accounting.UserRecord
	attempts map[string][]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]accounting.UserRecord),
		attempts: make(map[string][]time.Time),
	}
}

// GetUser returns a copy of the stored record.
func (m *Memory) GetUser(_ context.Context, username string) (*accounting.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.users[username]
	if !ok {
		return nil, accounting.ErrUserNotFound
	}
	return &rec, nil
}

// SaveWeeks replaces weeks, keeps preferences and, when token is empty, the token.
func (m *Memory) SaveWeeks(_ context.Context, username string, weeks map[accounting.WeekKey]accounting.WeekBreakdown, token string, savedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.users[username]
	rec.Username = username
	rec.Weeks = weeks
	if token != "" {
		rec.Token = token
	}
	rec.LastSave = savedAt
	m.users[username] = rec
	return nil
}

// SavePreferences merges prefs, creating the record if needed.
func (m *Memory) SavePreferences(_ context.Context, username string, prefs accounting.Preferences) (accounting.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[username]
	if !ok {
		rec = accounting.UserRecord{Username: username, Weeks: map[accounting.WeekKey]accounting.WeekBreakdown{}}
	}
	rec.Preferences = rec.Preferences.Merge(prefs)
	m.users[username] = rec
	return rec.Preferences, nil
}

// InvalidateToken clears the token. Unknown users are ignored.
func (m *Memory) InvalidateToken(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[username]
	if !ok {
		return nil
	}
	rec.Token = ""
	m.users[username] = rec
	return nil
}

// ListUsers returns all records sorted by username.
func (m *Memory) ListUsers(_ context.Context) ([]accounting.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]accounting.UserRecord, 0, len(m.users))
	for _, rec := range m.users {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// =============================================================================
// LOGIN ATTEMPTS
// =============================================================================

// RecordAttempt stores one failed attempt for key.
func (m *Memory) RecordAttempt(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[key] = append(m.attempts[key], at)
	return nil
}

// AttemptsSince returns the attempts for key at or after since, oldest first.
func (m *Memory) AttemptsSince(_ context.Context, key string, since time.Time) ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []time.Time
	for _, at := range m.attempts[key] {
		if !at.Before(since) {
			out = append(out, at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// ResetAttempts forgets every attempt for key.
func (m *Memory) ResetAttempts(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, key)
	return nil
}

// PurgeAttempts drops attempts older than before and returns how many went.
func (m *Memory) PurgeAttempts(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for key, list := range m.attempts {
		kept := list[:0]
		for _, at := range list {
			if at.Before(before) {
				purged++
				continue
			}
			kept = append(kept, at)
		}
		if len(kept) == 0 {
			delete(m.attempts, key)
		} else {
			m.attempts[key] = kept
		}
	}
	return purged, nil
}
