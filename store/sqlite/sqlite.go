/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists the per-user cache (last computed weeks, session token,
  preferences) and the login attempts used by the rate limiter, so both
  survive restarts.

INTERFACES IMPLEMENTED:
  accounting.UserStore: Per-user cache
  auth.AttemptStore:    Failed login attempts per client

KEY TABLES:
  users:          One row per username; weeks and preferences as JSON
  login_attempts: One row per failed attempt, keyed by client address

CONCURRENCY:
  Uses sync.RWMutex: readers share, writers are exclusive. Read-modify-write
  sequences (preference merge) also run inside a SQL transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/quelio.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - accounting/store.go: UserStore contract
  - auth/ratelimit.go: AttemptStore contract
  - accounting/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quelio/engine/accounting"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Per-user cache
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		preferences_json TEXT NOT NULL DEFAULT '{}',
		token TEXT,
		weeks_json TEXT NOT NULL DEFAULT '{}',
		last_save TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Failed login attempts (rate limiting)
	CREATE TABLE IF NOT EXISTS login_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_key TEXT NOT NULL,
		attempted_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_login_attempts_key_time
		ON login_attempts(attempt_key, attempted_at);
	CREATE INDEX IF NOT EXISTS idx_login_attempts_time
		ON login_attempts(attempted_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USER STORE (accounting.UserStore interface)
// =============================================================================

// GetUser retrieves the cached record for username.
func (s *Store) GetUser(ctx context.Context, username string) (*accounting.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getUser(ctx, s.db, username)
}

func (s *Store) getUser(ctx context.Context, db interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, username string) (*accounting.UserRecord, error) {
	var prefsJSON, weeksJSON string
	var token, lastSave sql.NullString

	err := db.QueryRowContext(ctx,
		"SELECT preferences_json, token, weeks_json, last_save FROM users WHERE username = ?",
		username,
	).Scan(&prefsJSON, &token, &weeksJSON, &lastSave)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, accounting.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeUser(username, prefsJSON, token, weeksJSON, lastSave)
}

// SaveWeeks replaces the cached weeks. Preferences are untouched and an
// empty token keeps the stored one.
func (s *Store) SaveWeeks(ctx context.Context, username string, weeks map[accounting.WeekKey]accounting.WeekBreakdown, token string, savedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if weeks == nil {
		weeks = map[accounting.WeekKey]accounting.WeekBreakdown{}
	}
	weeksJSON, err := json.Marshal(weeks)
	if err != nil {
		return fmt.Errorf("encode weeks: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (username, token, weeks_json, last_save, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			token = COALESCE(excluded.token, users.token),
			weeks_json = excluded.weeks_json,
			last_save = excluded.last_save,
			updated_at = excluded.updated_at
	`,
		username,
		nullString(token),
		string(weeksJSON),
		savedAt.UTC().Format(time.RFC3339),
		now, now,
	)
	return err
}

// SavePreferences merges prefs into the stored preferences.
func (s *Store) SavePreferences(ctx context.Context, username string, prefs accounting.Preferences) (accounting.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return accounting.Preferences{}, err
	}
	defer sqlTx.Rollback()

	var current accounting.Preferences
	rec, err := s.getUser(ctx, sqlTx, username)
	switch {
	case err == nil:
		current = rec.Preferences
	case errors.Is(err, accounting.ErrUserNotFound):
	default:
		return accounting.Preferences{}, err
	}

	merged := current.Merge(prefs)
	prefsJSON, err := json.Marshal(merged)
	if err != nil {
		return accounting.Preferences{}, fmt.Errorf("encode preferences: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO users (username, preferences_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			preferences_json = excluded.preferences_json,
			updated_at = excluded.updated_at
	`, username, string(prefsJSON), now, now)
	if err != nil {
		return accounting.Preferences{}, err
	}

	return merged, sqlTx.Commit()
}

// InvalidateToken clears the stored token. Unknown users are ignored.
func (s *Store) InvalidateToken(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET token = NULL, updated_at = ? WHERE username = ?",
		time.Now().UTC().Format(time.RFC3339), username,
	)
	return err
}

// ListUsers returns every record ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]accounting.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT username, preferences_json, token, weeks_json, last_save FROM users ORDER BY username",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []accounting.UserRecord
	for rows.Next() {
		var username, prefsJSON, weeksJSON string
		var token, lastSave sql.NullString
		if err := rows.Scan(&username, &prefsJSON, &token, &weeksJSON, &lastSave); err != nil {
			return nil, err
		}
		rec, err := decodeUser(username, prefsJSON, token, weeksJSON, lastSave)
		if err != nil {
			return nil, err
		}
		users = append(users, *rec)
	}
	return users, rows.Err()
}

func decodeUser(username, prefsJSON string, token sql.NullString, weeksJSON string, lastSave sql.NullString) (*accounting.UserRecord, error) {
	rec := accounting.UserRecord{
		Username: username,
		Token:    token.String,
		Weeks:    map[accounting.WeekKey]accounting.WeekBreakdown{},
	}
	if err := json.Unmarshal([]byte(prefsJSON), &rec.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences of %s: %w", username, err)
	}
	if err := json.Unmarshal([]byte(weeksJSON), &rec.Weeks); err != nil {
		return nil, fmt.Errorf("decode weeks of %s: %w", username, err)
	}
	if lastSave.Valid {
		rec.LastSave, _ = time.Parse(time.RFC3339, lastSave.String)
	}
	return &rec, nil
}

// =============================================================================
// ATTEMPT STORE (auth.AttemptStore interface)
// =============================================================================

// RecordAttempt stores one failed attempt for key.
func (s *Store) RecordAttempt(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO login_attempts (attempt_key, attempted_at) VALUES (?, ?)",
		key, at.UnixNano(),
	)
	return err
}

// AttemptsSince returns the attempts for key at or after since, oldest first.
func (s *Store) AttemptsSince(ctx context.Context, key string, since time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT attempted_at FROM login_attempts WHERE attempt_key = ? AND attempted_at >= ? ORDER BY attempted_at",
		key, since.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []time.Time
	for rows.Next() {
		var ns int64
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		attempts = append(attempts, time.Unix(0, ns))
	}
	return attempts, rows.Err()
}

// ResetAttempts forgets every attempt for key.
func (s *Store) ResetAttempts(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM login_attempts WHERE attempt_key = ?", key)
	return err
}

// PurgeAttempts drops attempts older than before.
func (s *Store) PurgeAttempts(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM login_attempts WHERE attempted_at < ?", before.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
