/*
Package config loads the quelio configuration file.

PURPOSE:
  One JSON file configures the server and the CLI: the portal URL, the
  accounting rules, token and rate-limit settings, storage and logging.
  The file supports full-line // comments. Missing keys keep their
  defaults, and a few secrets can come from the environment instead.

ENVIRONMENT OVERRIDES:
  QUELIO_KELIO_URL            kelio_url
  QUELIO_ENCRYPTION_KEY       encryption_key
  QUELIO_ADMIN_PASSWORD_HASH  admin_password_hash

SEE ALSO:
  - accounting/rules.go: RuleConfig and its invariants
*/
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quelio/engine/accounting"
)

// Config is the root configuration.
type Config struct {
	// KelioURL is the portal base URL, e.g. "https://acme.kelio.io".
	KelioURL string `json:"kelio_url"`
	// Timezone is the IANA zone the portal punches are expressed in.
	Timezone string `json:"timezone"`
	// Rules are the accounting rules; omitted fields keep the standard values.
	Rules accounting.RuleConfig `json:"rules"`

	// EncryptionKey protects passwords inside session tokens.
	EncryptionKey string `json:"encryption_key"`
	// TokenTTL bounds token lifetime. Zero means tokens never expire.
	TokenTTL Duration `json:"token_ttl"`

	AdminUsername     string `json:"admin_username"`
	AdminPasswordHash string `json:"admin_password_hash"` // bcrypt

	RateLimitMaxAttempts int      `json:"rate_limit_max_attempts"`
	RateLimitWindow      Duration `json:"rate_limit_window"`
	// JanitorInterval is how often stale login attempts are purged.
	JanitorInterval Duration `json:"janitor_interval"`

	DatabasePath    string   `json:"database_path"`
	AllowedOrigins  []string `json:"allowed_origins"`
	LogDir          string   `json:"log_dir"`
	Debug           bool     `json:"debug"`
	UpstreamTimeout Duration `json:"upstream_timeout"`
}

const (
	DefaultDatabasePath    = "quelio.db"
	DefaultMaxAttempts     = 5
	DefaultRateLimitWindow = 15 * time.Minute
	DefaultJanitorInterval = 10 * time.Minute
	DefaultUpstreamTimeout = 30 * time.Second
)

// Default returns a Config pre-filled with the built-in defaults.
func Default() Config {
	return Config{
		Timezone:             accounting.DefaultTimezone,
		Rules:                accounting.StandardRules(),
		RateLimitMaxAttempts: DefaultMaxAttempts,
		RateLimitWindow:      Duration{DefaultRateLimitWindow},
		JanitorInterval:      Duration{DefaultJanitorInterval},
		DatabasePath:         DefaultDatabasePath,
		AllowedOrigins:       []string{"*"},
		UpstreamTimeout:      Duration{DefaultUpstreamTimeout},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Parse decodes a commented JSON document over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Load reads the file at path, or only the defaults when path is empty,
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Default(), fmt.Errorf("reading config file %s: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return Default(), fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("QUELIO_KELIO_URL"); v != "" {
		c.KelioURL = v
	}
	if v := getenv("QUELIO_ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
	if v := getenv("QUELIO_ADMIN_PASSWORD_HASH"); v != "" {
		c.AdminPasswordHash = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	if _, err := accounting.LoadLocation(c.Timezone); err != nil {
		return err
	}
	if c.RateLimitMaxAttempts <= 0 {
		return errors.New("rate_limit_max_attempts must be positive")
	}
	if c.RateLimitWindow.Duration <= 0 {
		return errors.New("rate_limit_window must be positive")
	}
	return nil
}

// ValidateServer additionally checks what talking to the portal and issuing
// tokens requires.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.KelioURL == "" {
		return errors.New("kelio_url is required")
	}
	if !strings.HasPrefix(c.KelioURL, "http://") && !strings.HasPrefix(c.KelioURL, "https://") {
		return fmt.Errorf("kelio_url %q must be an http(s) URL", c.KelioURL)
	}
	if c.EncryptionKey == "" {
		return errors.New("encryption_key is required")
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	return accounting.LoadLocation(c.Timezone)
}

// =============================================================================
// TEMPLATE
// =============================================================================

// Template is the annotated config written by "quelio config init".
const Template = `// quelio configuration
//
// Lines starting with // are comments. Omitted keys keep their defaults.
{
  // Base URL of the Kelio portal.
  "kelio_url": "https://example.kelio.io",

  // Timezone of the portal punches.
  "timezone": "Europe/Paris",

  // Accounting rules. Values are minutes of the day or "HH:MM" strings.
  "rules": {
    "start_limit": "08:30",
    "end_limit": "18:30",
    "morning_break_threshold": "11:00",
    "afternoon_break_threshold": "16:00",
    "break_credit": 7,
    "noon_window_start": "12:00",
    "noon_window_end": "14:00",
    "noon_minimum_break": 60
  },

  // Secret protecting the passwords carried by session tokens.
  // Prefer QUELIO_ENCRYPTION_KEY in production.
  "encryption_key": "",
  "token_ttl": "720h",

  // Admin access to /api/data. Generate the hash with: quelio admin hash
  "admin_username": "",
  "admin_password_hash": "",

  "rate_limit_max_attempts": 5,
  "rate_limit_window": "15m",
  "janitor_interval": "10m",

  "database_path": "quelio.db",
  "allowed_origins": ["*"],
  "log_dir": "",
  "debug": false,
  "upstream_timeout": "30s"
}
`

// WriteTemplate writes Template to path, refusing to overwrite.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(Template), 0600)
}

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as a Go duration string ("15m").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"15m\": %w", err)
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
