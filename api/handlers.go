/*
handlers.go - HTTP API handlers for the Quelio proxy

PURPOSE:
  Exposes the accounting engine behind the portal login. Handles HTTP
  request/response, JSON serialization, and delegates to the portal client,
  the accountant and the user store.

ENDPOINTS:
  Session:
    POST   /api/login          Fetch, compute and cache the caller's hours
    POST   /api/preferences    Update theme and daily objective

  Admin:
    GET    /api/data           Dump every cached user (admin credentials)
    POST   /api/data

  Assets (assets.go):
    GET    /icon.svg           Themed application icon
    GET    /manifest.json      PWA manifest

  Ops:
    GET    /healthz            Liveness

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Users: cached per-user state (accounting.UserStore)
  - Tokens + Limiter: session tokens and login throttling
  - Portal: the upstream time-tracking portal
  - Accountant: rules and timezone

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid body, nothing to update
  - 401: Authentication failed
  - 422: Validation errors (with per-field messages)
  - 429: Too many failed logins
  - 502: Portal unreachable and nothing cached
  - 500: Internal errors

SEE ALSO:
  - middleware.go: authentication and parameters
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/quelio/engine/accounting"
	"github.com/quelio/engine/auth"
	"github.com/quelio/engine/kelio"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Portal is the upstream time-tracking portal.
type Portal interface {
	Login(ctx context.Context, username, password string) (kelio.Session, error)
	FetchAllHours(ctx context.Context, session kelio.Session) ([]accounting.RawFragment, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Users      accounting.UserStore
	Tokens     *auth.Tokens
	Limiter    *auth.RateLimiter
	Portal     Portal
	Accountant accounting.Accountant

	AdminUsername     string
	AdminPasswordHash string

	Logger *log.Logger
	Now    func() time.Time
}

// NewHandler creates a handler with the required dependencies. Admin
// credentials, logger and clock may be set on the returned value.
func NewHandler(users accounting.UserStore, tokens *auth.Tokens, limiter *auth.RateLimiter, portal Portal, accountant accounting.Accountant) *Handler {
	return &Handler{
		Users:      users,
		Tokens:     tokens,
		Limiter:    limiter,
		Portal:     portal,
		Accountant: accountant,
		Now:        time.Now,
	}
}

func (h *Handler) authenticator() *auth.Authenticator {
	return &auth.Authenticator{Tokens: h.Tokens, Users: h.Users}
}

func (h *Handler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// Login fetches fresh hours from the portal, computes them and caches the
// result with a new session token. When the portal cannot deliver, the
// last cached result is returned instead.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Not authenticated"})
		return
	}

	resp, err := h.fetchFresh(r.Context(), id)
	if err != nil {
		if accounting.IsMalformedInput(err) {
			h.logger().Error("portal returned unparsable punches", "user", id.Username, "err", err)
		} else {
			h.logger().Warn("fresh fetch failed, trying cache", "user", id.Username, "err", err)
		}
		h.serveCached(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) fetchFresh(ctx context.Context, id identity) (LoginResponse, error) {
	fragments, err := h.Portal.FetchAllHours(ctx, id.Session)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("fetch hours: %w", err)
	}
	report, err := h.Accountant.Compute(accounting.Merge(fragments...), h.now())
	if err != nil {
		return LoginResponse{}, fmt.Errorf("compute hours: %w", err)
	}

	token, err := h.Tokens.Issue(id.Username, id.Password)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("issue token: %w", err)
	}
	savedAt := h.now()
	if err := h.Users.SaveWeeks(ctx, id.Username, report.Weeks, token, savedAt); err != nil {
		return LoginResponse{}, fmt.Errorf("save weeks: %w", err)
	}

	rec, err := h.Users.GetUser(ctx, id.Username)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("reload user: %w", err)
	}
	h.logger().Info("hours refreshed", "user", id.Username, "days", len(report.Days), "weeks", len(report.Weeks))

	return LoginResponse{
		AuthenticatedWith: id.AuthenticatedWith,
		Username:          id.Username,
		Weeks:             toWeekDTOs(report.Weeks),
		TotalEffective:    report.TotalEffective.String(),
		TotalPaid:         report.TotalPaid.String(),
		Preferences:       rec.Preferences,
		Token:             token,
		LastSave:          formatTime(savedAt),
		DataSaved:         true,
		Cache:             false,
	}, nil
}

func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, id identity, cause error) {
	ctx := r.Context()
	rec, err := h.Users.GetUser(ctx, id.Username)
	if errors.Is(err, accounting.ErrUserNotFound) {
		writeError(w, http.StatusBadGateway, "No fresh data available and no cached data found", cause)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load cached data", err)
		return
	}

	token := rec.Token
	if token == "" {
		token, err = h.Tokens.Issue(id.Username, id.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
			return
		}
		if err := h.Users.SaveWeeks(ctx, id.Username, rec.Weeks, token, rec.LastSave); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save token", err)
			return
		}
	}

	var effective, paid accounting.Minutes
	for _, week := range rec.Weeks {
		effective += week.TotalEffective
		paid += week.TotalPaid
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Error:             "Failed to fetch fresh data, using cached data",
		Fallback:          true,
		AuthenticatedWith: id.AuthenticatedWith,
		Username:          id.Username,
		Weeks:             toWeekDTOs(rec.Weeks),
		TotalEffective:    effective.String(),
		TotalPaid:         paid.String(),
		Preferences:       rec.Preferences,
		Token:             token,
		LastSave:          formatTime(rec.LastSave),
		Cache:             true,
	})
}

// =============================================================================
// PREFERENCES
// =============================================================================

var themePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const (
	maxThemeLength    = 50
	maxDailyObjective = 24 * 60
)

// parsePreferences validates the preference fields present in p.
func parsePreferences(p params) (accounting.Preferences, map[string]string) {
	var prefs accounting.Preferences
	fields := map[string]string{}

	if p.Has("theme") {
		theme := strings.TrimSpace(p.String("theme"))
		if themePattern.MatchString(theme) && len(theme) <= maxThemeLength {
			prefs.Theme = &theme
		} else {
			fields["theme"] = "Invalid theme format. Only alphanumeric, underscore and dash allowed (max 50 chars)"
		}
	}

	if p.Has("minutes_objective") {
		objective, err := strconv.Atoi(strings.TrimSpace(p.String("minutes_objective")))
		if err == nil && objective >= 0 && objective <= maxDailyObjective {
			prefs.MinutesObjective = &objective
		} else {
			fields["minutes_objective"] = "Invalid minutes objective. Must be between 0 and 1440 (24 hours)"
		}
	}

	if len(fields) == 0 {
		return prefs, nil
	}
	return prefs, fields
}

// UpdatePreferences merges the provided preferences into the caller's record.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Not authenticated"})
		return
	}

	prefs, fields := parsePreferences(paramsFrom(r.Context()))
	if fields != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "Validation failed", Code: "validation_failed", Fields: fields})
		return
	}
	if prefs.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No valid preferences provided"})
		return
	}

	merged, err := h.Users.SavePreferences(r.Context(), id.Username, prefs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, PreferencesResponse{Success: true, Username: id.Username, Preferences: merged})
}

// =============================================================================
// ADMIN
// =============================================================================

// Data returns every cached user keyed by username.
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}
	out := make(map[string]UserDTO, len(users))
	for _, u := range users {
		out[u.Username] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, out)
}

// Health reports liveness, and the database when the store can be pinged.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Users.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
