package accounting

import "fmt"

// =============================================================================
// RULE CONFIGURATION
// =============================================================================

// RuleConfig holds the business rules, as minute-of-day cutoffs and durations.
// It is loaded once at startup and never mutated.
type RuleConfig struct {
	// StartLimit and EndLimit bound every punch: earlier punches are raised
	// to StartLimit, later ones lowered to EndLimit.
	StartLimit Minutes `json:"start_limit"`
	EndLimit   Minutes `json:"end_limit"`

	// A session ending at or after a threshold earns one BreakCredit,
	// at most once per day per threshold.
	MorningBreakThreshold   Minutes `json:"morning_break_threshold"`
	AfternoonBreakThreshold Minutes `json:"afternoon_break_threshold"`
	BreakCredit             Minutes `json:"break_credit"`

	// Lunch is expected in [NoonWindowStart, NoonWindowEnd) and should last
	// at least NoonMinimumBreak.
	NoonWindowStart  Minutes `json:"noon_window_start"`
	NoonWindowEnd    Minutes `json:"noon_window_end"`
	NoonMinimumBreak Minutes `json:"noon_minimum_break"`
}

// StandardRules returns the rules used by the reference deployment:
// 08:30-18:30 window, 7 minute credits after 11:00 and 16:00, and a one hour
// lunch expected between 12:00 and 14:00.
func StandardRules() RuleConfig {
	return RuleConfig{
		StartLimit:              NewMinutes(8, 30),
		EndLimit:                NewMinutes(18, 30),
		MorningBreakThreshold:   NewMinutes(11, 0),
		AfternoonBreakThreshold: NewMinutes(16, 0),
		BreakCredit:             7,
		NoonWindowStart:         NewMinutes(12, 0),
		NoonWindowEnd:           NewMinutes(14, 0),
		NoonMinimumBreak:        60,
	}
}

// Validate checks the invariants the engine relies on. The engine itself
// never calls it; the configuration loader does.
func (r RuleConfig) Validate() error {
	if r.StartLimit >= r.EndLimit {
		return fmt.Errorf("%w: start_limit %s must be before end_limit %s", ErrInvalidRules, r.StartLimit, r.EndLimit)
	}
	if r.NoonWindowStart >= r.NoonWindowEnd {
		return fmt.Errorf("%w: noon_window_start %s must be before noon_window_end %s", ErrInvalidRules, r.NoonWindowStart, r.NoonWindowEnd)
	}
	if r.BreakCredit < 0 || r.NoonMinimumBreak < 0 {
		return fmt.Errorf("%w: break_credit and noon_minimum_break must not be negative", ErrInvalidRules)
	}
	for name, v := range map[string]Minutes{
		"start_limit":               r.StartLimit,
		"end_limit":                 r.EndLimit,
		"morning_break_threshold":   r.MorningBreakThreshold,
		"afternoon_break_threshold": r.AfternoonBreakThreshold,
		"noon_window_start":         r.NoonWindowStart,
		"noon_window_end":           r.NoonWindowEnd,
	} {
		if v < 0 || v > NewMinutes(24, 0) {
			return fmt.Errorf("%w: %s %d is not a minute of the day", ErrInvalidRules, name, v)
		}
	}
	return nil
}

// clamp moves m into [StartLimit, EndLimit].
func (r RuleConfig) clamp(m Minutes) Minutes {
	return max(min(m, r.EndLimit), r.StartLimit)
}
