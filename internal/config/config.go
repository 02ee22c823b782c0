package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"holidaycal/internal/ics"
	"holidaycal/internal/model"
	"holidaycal/internal/sources"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOLIDAYCAL_"

// ICSConfig describes a calendar subscription merged on every refresh.
type ICSConfig struct {
	// URL is the ICS subscription endpoint (webcal:// is accepted).
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ImportWindow bounds RRULE expansion around the selected year.
type ImportWindow struct {
	YearsBefore int `yaml:"years_before" json:"years_before"`
	YearsAfter  int `yaml:"years_after" json:"years_after"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is DEBUG, INFO or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Country selects the bank holiday division and default school table.
	Country model.Country `yaml:"country" json:"country"`

	// Year is the calendar year shown at startup; 0 means the current year.
	Year int `yaml:"year" json:"year"`

	// Postcode, when set, replaces the default school table at startup.
	Postcode string `yaml:"postcode" json:"postcode"`

	// StatePath is where the session document is saved and restored.
	StatePath string `yaml:"state_path" json:"state_path"`

	// CacheDir holds the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// BankHolidayURL is the gov.uk feed.
	BankHolidayURL string `yaml:"bank_holiday_url" json:"bank_holiday_url"`

	// Proxies is the ordered fetch chain for ICS imports; {url} is replaced
	// by the escaped target. An empty list fetches directly.
	Proxies []string `yaml:"proxies" json:"proxies"`

	// RefreshCron is a cron-style schedule string (e.g. "0 */6 * * *")
	// for reloading public holidays and subscriptions. Empty disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	ImportWindow ImportWindow `yaml:"import_window" json:"import_window"`

	// Subscriptions are ICS sources merged into the collection on refresh.
	Subscriptions []ICSConfig `yaml:"subscriptions" json:"subscriptions"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		LogLevel:       "INFO",
		Country:        model.CountryEnglandWales,
		StatePath:      "./var/state.json",
		CacheDir:       "./var/ics-cache",
		BankHolidayURL: sources.DefaultBankHolidayURL,
		Proxies:        append([]string(nil), ics.DefaultProxies...),
		RefreshCron:    "0 */6 * * *",
		ImportWindow:   ImportWindow{YearsBefore: 1, YearsAfter: 1},
		Subscriptions:  []ICSConfig{},
		BasicAuth:      nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if !c.Country.Valid() {
		c.Country = def.Country
	}
	if c.Year < 0 {
		c.Year = 0
	}
	if c.StatePath == "" {
		c.StatePath = def.StatePath
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.BankHolidayURL == "" {
		c.BankHolidayURL = def.BankHolidayURL
	}
	// nil means "not configured"; an explicit empty list means direct fetch.
	if c.Proxies == nil {
		c.Proxies = def.Proxies
	}
	if c.ImportWindow.YearsBefore < 0 {
		c.ImportWindow.YearsBefore = 0
	}
	if c.ImportWindow.YearsAfter < 0 {
		c.ImportWindow.YearsAfter = 0
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []ICSConfig{}
	}
	for i := range c.Subscriptions {
		if c.Subscriptions[i].ID == "" {
			c.Subscriptions[i].ID = fmt.Sprintf("sub-%d", i+1)
		}
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from HOLIDAYCAL_* variables read through getenv.
// HOLIDAYCAL_PROXIES is a comma separated list; "none" selects direct fetch.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}

	str("LISTEN", &c.Listen)
	str("LOG_LEVEL", &c.LogLevel)
	str("POSTCODE", &c.Postcode)
	str("STATE_PATH", &c.StatePath)
	str("CACHE_DIR", &c.CacheDir)
	str("BANK_HOLIDAY_URL", &c.BankHolidayURL)
	str("REFRESH", &c.RefreshCron)

	if v := strings.TrimSpace(getenv(EnvPrefix + "COUNTRY")); v != "" {
		country := model.Country(v)
		if !country.Valid() {
			return fmt.Errorf("%sCOUNTRY: %w: %q", EnvPrefix, model.ErrUnknownCountry, v)
		}
		c.Country = country
	}

	if v := strings.TrimSpace(getenv(EnvPrefix + "YEAR")); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 0 {
			return fmt.Errorf("%sYEAR: invalid year %q", EnvPrefix, v)
		}
		c.Year = year
	}

	if v := strings.TrimSpace(getenv(EnvPrefix + "PROXIES")); v != "" {
		if strings.EqualFold(v, "none") {
			c.Proxies = []string{}
		} else {
			var proxies []string
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					proxies = append(proxies, p)
				}
			}
			c.Proxies = proxies
		}
	}

	user := strings.TrimSpace(getenv(EnvPrefix + "BASIC_AUTH_USER"))
	pass := getenv(EnvPrefix + "BASIC_AUTH_PASSWORD")
	if user != "" || pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}

	c.Normalize()
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".holidaycal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
