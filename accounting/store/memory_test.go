package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quelio/engine/accounting"
	"github.com/quelio/engine/accounting/store"
)

func TestMemory_UserLifecycle(t *testing.T) {
	// GIVEN: An empty memory store
	// WHEN: Saving preferences, weeks, then invalidating the token
	// THEN: Each write keeps what the previous one stored

	m := store.NewMemory()
	ctx := context.Background()
	theme := "dark"

	_, err := m.GetUser(ctx, "alice")
	require.ErrorIs(t, err, accounting.ErrUserNotFound)

	_, err = m.SavePreferences(ctx, "alice", accounting.Preferences{Theme: &theme})
	require.NoError(t, err)
	require.NoError(t, m.SaveWeeks(ctx, "alice", map[accounting.WeekKey]accounting.WeekBreakdown{"2026-w-03": {TotalPaid: 554}}, "tok", time.Now()))
	require.NoError(t, m.SaveWeeks(ctx, "alice", nil, "", time.Now()))

	rec, err := m.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok", rec.Token)
	assert.Equal(t, "dark", *rec.Preferences.Theme)

	require.NoError(t, m.InvalidateToken(ctx, "alice"))
	rec, err = m.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rec.Token)

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestMemory_Attempts(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, time.January, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, m.RecordAttempt(ctx, "ip", base))
	require.NoError(t, m.RecordAttempt(ctx, "ip", base.Add(time.Minute)))

	recent, err := m.AttemptsSince(ctx, "ip", base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	n, err := m.PurgeAttempts(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := m.AttemptsSince(ctx, "ip", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, all)
}
