package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quelio/engine/accounting"
	"github.com/quelio/engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleWeeks(t *testing.T) map[accounting.WeekKey]accounting.WeekBreakdown {
	day, err := accounting.ComputeDay("14-01-2026", accounting.DayPunches{"08:30", "12:00", "13:00", "18:30"}, accounting.StandardRules(), false, 0)
	require.NoError(t, err)
	return accounting.RollUpByWeek(map[accounting.DayKey]accounting.DayBreakdown{day.Day: day})
}

// =============================================================================
// USER STORE
// =============================================================================

func TestStore_GetUser_Unknown(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, accounting.ErrUserNotFound)
}

func TestStore_SaveWeeks_RoundTrip(t *testing.T) {
	// GIVEN: A computed week
	// WHEN: Saving then reading it back
	// THEN: Totals, adjustments and the save time survive

	store := newTestStore(t)
	ctx := context.Background()
	savedAt := time.Date(2026, time.January, 14, 19, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveWeeks(ctx, "alice", sampleWeeks(t), "tok-1", savedAt))

	rec, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", rec.Token)
	assert.True(t, savedAt.Equal(rec.LastSave))

	week := rec.Weeks["2026-w-03"]
	assert.Equal(t, "09:14", week.TotalPaid.String())
	day := week.Days["14-01-2026"]
	require.Len(t, day.Adjustments, 2)
	assert.Equal(t, "+ 00:07 => morning break", day.Adjustments[0].String())
}

func TestStore_SaveWeeks_PreservesPreferencesAndToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	theme := "dark"

	_, err := store.SavePreferences(ctx, "alice", accounting.Preferences{Theme: &theme})
	require.NoError(t, err)
	require.NoError(t, store.SaveWeeks(ctx, "alice", sampleWeeks(t), "tok-1", time.Now()))

	// No token given: the stored one stays
	require.NoError(t, store.SaveWeeks(ctx, "alice", nil, "", time.Now()))

	rec, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", rec.Token)
	require.NotNil(t, rec.Preferences.Theme)
	assert.Equal(t, "dark", *rec.Preferences.Theme)
	assert.Empty(t, rec.Weeks)
}

func TestStore_SavePreferences_Merges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	theme, objective := "ocean", 450

	_, err := store.SavePreferences(ctx, "bob", accounting.Preferences{Theme: &theme})
	require.NoError(t, err)
	merged, err := store.SavePreferences(ctx, "bob", accounting.Preferences{MinutesObjective: &objective})
	require.NoError(t, err)

	require.NotNil(t, merged.Theme)
	assert.Equal(t, "ocean", *merged.Theme)
	require.NotNil(t, merged.MinutesObjective)
	assert.Equal(t, 450, *merged.MinutesObjective)

	rec, err := store.GetUser(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, merged, rec.Preferences)
}

func TestStore_InvalidateToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveWeeks(ctx, "alice", nil, "tok-1", time.Now()))
	require.NoError(t, store.InvalidateToken(ctx, "alice"))
	require.NoError(t, store.InvalidateToken(ctx, "ghost"))

	rec, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rec.Token)
}

func TestStore_ListUsers_Sorted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, store.SaveWeeks(ctx, name, nil, "", time.Now()))
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "carol", users[2].Username)
}

// =============================================================================
// ATTEMPT STORE
// =============================================================================

func TestStore_Attempts(t *testing.T) {
	// GIVEN: Three failed attempts from one address, one from another
	// WHEN: Querying, purging and resetting
	// THEN: Each operation only touches the expected rows

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.January, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordAttempt(ctx, "10.0.0.1", base))
	require.NoError(t, store.RecordAttempt(ctx, "10.0.0.1", base.Add(2*time.Minute)))
	require.NoError(t, store.RecordAttempt(ctx, "10.0.0.1", base.Add(4*time.Minute)))
	require.NoError(t, store.RecordAttempt(ctx, "10.0.0.2", base))

	recent, err := store.AttemptsSince(ctx, "10.0.0.1", base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].Equal(base.Add(2*time.Minute)))

	purged, err := store.PurgeAttempts(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	require.NoError(t, store.ResetAttempts(ctx, "10.0.0.1"))
	left, err := store.AttemptsSince(ctx, "10.0.0.1", base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, left)
}
