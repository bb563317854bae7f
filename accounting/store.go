/*
store.go - Per-user cache persistence interface

PURPOSE:
  The last successful accounting run is cached per username so that a portal
  outage can be served from the previous snapshot. The same record carries
  the user's session token and display preferences.

CONTRACT:
  - SaveWeeks replaces the weeks wholesale and keeps existing preferences.
    An empty token keeps the stored one.
  - SavePreferences merges: only the fields set in the argument change.
    Unknown users get a fresh record.
  - InvalidateToken clears the token; unknown users are a no-op.
  - Readers never observe a partially written record.

IMPLEMENTATIONS:
  - store/sqlite: production
  - accounting/store: in-memory for tests and the CLI

SEE ALSO:
  - types.go: WeekBreakdown
*/
package accounting

import (
	"context"
	"time"
)

// Preferences are the user's display settings. Nil fields are unset.
type Preferences struct {
	Theme            *string `json:"theme,omitempty"`
	MinutesObjective *int    `json:"minutes_objective,omitempty"`
}

// Merge returns p with every field set in update overridden.
func (p Preferences) Merge(update Preferences) Preferences {
	if update.Theme != nil {
		theme := *update.Theme
		p.Theme = &theme
	}
	if update.MinutesObjective != nil {
		objective := *update.MinutesObjective
		p.MinutesObjective = &objective
	}
	return p
}

// IsEmpty reports whether no field is set.
func (p Preferences) IsEmpty() bool {
	return p.Theme == nil && p.MinutesObjective == nil
}

// UserRecord is the cached state of one user.
type UserRecord struct {
	Username    string                    `json:"username"`
	Preferences Preferences               `json:"preferences"`
	Token       string                    `json:"token,omitempty"`
	Weeks       map[WeekKey]WeekBreakdown `json:"weeks"`
	LastSave    time.Time                 `json:"last_save"`
}

// UserStore persists user records.
type UserStore interface {
	// GetUser returns ErrUserNotFound for unknown usernames.
	GetUser(ctx context.Context, username string) (*UserRecord, error)

	// SaveWeeks replaces the cached weeks and stamps LastSave.
	SaveWeeks(ctx context.Context, username string, weeks map[WeekKey]WeekBreakdown, token string, savedAt time.Time) error

	// SavePreferences merges prefs into the stored ones and returns the result.
	SavePreferences(ctx context.Context, username string, prefs Preferences) (Preferences, error)

	// InvalidateToken removes the stored session token.
	InvalidateToken(ctx context.Context, username string) error

	// ListUsers returns every record ordered by username.
	ListUsers(ctx context.Context) ([]UserRecord, error)
}
