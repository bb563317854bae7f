/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Durations are rendered
  the way the front-end displays them (HH:MM) alongside decimal hours for
  charts, so clients never redo the arithmetic.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Complex response wrappers

TYPES:
  Accounting:
    DayDTO, BreaksDTO, WeekDTO

  Session:
    LoginResponse, PreferencesResponse

  Admin:
    UserDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quelio/engine/accounting"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// BreaksDTO are the observed breaks of one day.
type BreaksDTO struct {
	Morning   string `json:"morning"`
	Noon      string `json:"noon"`
	Afternoon string `json:"afternoon"`
}

// DayDTO is one computed day.
type DayDTO struct {
	Hours           []string        `json:"hours"`
	Breaks          BreaksDTO       `json:"breaks"`
	Effective       string          `json:"effective"`
	Paid            string          `json:"paid"`
	EffectiveHours  decimal.Decimal `json:"effective_hours"`
	PaidHours       decimal.Decimal `json:"paid_hours"`
	EffectiveToPaid []string        `json:"effective_to_paid"`
}

// WeekDTO is one ISO week with its totals.
type WeekDTO struct {
	Days                map[accounting.DayKey]DayDTO `json:"days"`
	TotalEffective      string                       `json:"total_effective"`
	TotalPaid           string                       `json:"total_paid"`
	TotalEffectiveHours decimal.Decimal              `json:"total_effective_hours"`
	TotalPaidHours      decimal.Decimal              `json:"total_paid_hours"`
}

// LoginResponse is returned by POST /api/login, fresh or from cache.
type LoginResponse struct {
	Error             string                         `json:"error,omitempty"`
	Fallback          bool                           `json:"fallback,omitempty"`
	AuthenticatedWith string                         `json:"authenticated_with"`
	Username          string                         `json:"username"`
	Weeks             map[accounting.WeekKey]WeekDTO `json:"weeks"`
	TotalEffective    string                         `json:"total_effective"`
	TotalPaid         string                         `json:"total_paid"`
	Preferences       accounting.Preferences         `json:"preferences"`
	Token             string                         `json:"token"`
	LastSave          string                         `json:"last_save,omitempty"`
	DataSaved         bool                           `json:"data_saved"`
	Cache             bool                           `json:"cache"`
}

// PreferencesResponse is returned by POST /api/preferences.
type PreferencesResponse struct {
	Success     bool                   `json:"success"`
	Username    string                 `json:"username"`
	Preferences accounting.Preferences `json:"preferences"`
}

// UserDTO is one cached user in the admin dump. The token is never exposed.
type UserDTO struct {
	Preferences accounting.Preferences         `json:"preferences"`
	HasToken    bool                           `json:"has_token"`
	Weeks       map[accounting.WeekKey]WeekDTO `json:"weeks"`
	LastSave    string                         `json:"last_save,omitempty"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`

	// Validation
	Fields map[string]string `json:"fields,omitempty"`

	// Rate limiting and failed logins
	RetryAfter        int  `json:"retry_after,omitempty"`
	RetryAfterMinutes int  `json:"retry_after_minutes,omitempty"`
	RemainingAttempts *int `json:"remaining_attempts,omitempty"`
	TokenInvalidated  bool `json:"token_invalidated,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDayDTO(d accounting.DayBreakdown) DayDTO {
	hours := d.Hours
	if hours == nil {
		hours = accounting.DayPunches{}
	}
	adjustments := make([]string, 0, len(d.Adjustments))
	for _, a := range d.Adjustments {
		adjustments = append(adjustments, a.String())
	}
	return DayDTO{
		Hours: hours,
		Breaks: BreaksDTO{
			Morning:   d.Breaks.Morning.String(),
			Noon:      d.Breaks.Noon.String(),
			Afternoon: d.Breaks.Afternoon.String(),
		},
		Effective:       d.Effective.String(),
		Paid:            d.Paid.String(),
		EffectiveHours:  d.Effective.Hours(),
		PaidHours:       d.Paid.Hours(),
		EffectiveToPaid: adjustments,
	}
}

func toWeekDTOs(weeks map[accounting.WeekKey]accounting.WeekBreakdown) map[accounting.WeekKey]WeekDTO {
	out := make(map[accounting.WeekKey]WeekDTO, len(weeks))
	for key, w := range weeks {
		days := make(map[accounting.DayKey]DayDTO, len(w.Days))
		for dk, d := range w.Days {
			days[dk] = toDayDTO(d)
		}
		out[key] = WeekDTO{
			Days:                days,
			TotalEffective:      w.TotalEffective.String(),
			TotalPaid:           w.TotalPaid.String(),
			TotalEffectiveHours: w.TotalEffective.Hours(),
			TotalPaidHours:      w.TotalPaid.Hours(),
		}
	}
	return out
}

func toUserDTO(rec accounting.UserRecord) UserDTO {
	return UserDTO{
		Preferences: rec.Preferences,
		HasToken:    rec.Token != "",
		Weeks:       toWeekDTOs(rec.Weeks),
		LastSave:    formatTime(rec.LastSave),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
