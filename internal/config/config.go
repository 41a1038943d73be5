package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment variables (DAYCAL_*) override file values.

const (
	defaultListen     = "127.0.0.1:8080"
	defaultLocale     = "en-GB"
	defaultStartYear  = 2020
	defaultEndYear    = 2030
	defaultOutputPath = "days.ics"
	defaultProductID  = "-//Days Calendar//CYF//EN"
	defaultRegenerate = "0 3 * * *"
	defaultTimeout    = 10
	defaultParallel   = 4
)

// LookupConfig controls how event descriptions are fetched.
type LookupConfig struct {
	// TimeoutSeconds bounds a single description request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// Concurrency is the number of descriptions fetched in parallel.
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// CacheDir keeps fetched descriptions on disk between runs. Empty disables it.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// Offline skips the network and uses event names as descriptions.
	Offline bool `yaml:"offline" json:"offline"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web API.
	Listen string `yaml:"listen" json:"listen"`

	// Locale is the BCP 47 tag the rule list's month and weekday names are
	// written in (e.g. "en-GB", "fr").
	Locale string `yaml:"locale" json:"locale"`

	// StartYear / EndYear bound the generated calendar (inclusive).
	StartYear int `yaml:"start_year" json:"start_year"`
	EndYear   int `yaml:"end_year" json:"end_year"`

	// RulesPath points at a JSON or YAML rule list. Empty uses the built-in list.
	RulesPath string `yaml:"rules_path" json:"rules_path"`

	// OutputPath is where the generated .ics document is written.
	OutputPath string `yaml:"output_path" json:"output_path"`

	// ProductID is written as the calendar PRODID.
	ProductID string `yaml:"product_id" json:"product_id"`

	// Regenerate is a cron-style schedule (e.g. "0 3 * * *") for rewriting
	// OutputPath in serve mode. Empty disables scheduled regeneration.
	Regenerate string `yaml:"regenerate" json:"regenerate"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	Lookup LookupConfig `yaml:"lookup" json:"lookup"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// envOverrides mirrors the settings that may come from the environment.
// Zero values mean "not set".
type envOverrides struct {
	Listen     string `env:"DAYCAL_LISTEN"`
	Locale     string `env:"DAYCAL_LOCALE"`
	StartYear  int    `env:"DAYCAL_START_YEAR"`
	EndYear    int    `env:"DAYCAL_END_YEAR"`
	RulesPath  string `env:"DAYCAL_RULES"`
	OutputPath string `env:"DAYCAL_OUTPUT"`
	LogLevel   string `env:"DAYCAL_LOG_LEVEL"`
	CacheDir   string `env:"DAYCAL_CACHE_DIR"`
	Offline    bool   `env:"DAYCAL_OFFLINE"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:     defaultListen,
		Locale:     defaultLocale,
		StartYear:  defaultStartYear,
		EndYear:    defaultEndYear,
		OutputPath: defaultOutputPath,
		ProductID:  defaultProductID,
		Regenerate: defaultRegenerate,
		LogLevel:   "info",
		Lookup: LookupConfig{
			TimeoutSeconds: defaultTimeout,
			Concurrency:    defaultParallel,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	if c.StartYear == 0 {
		c.StartYear = defaultStartYear
	}
	if c.EndYear == 0 {
		c.EndYear = defaultEndYear
	}
	// An inverted range collapses to the start year rather than producing nothing.
	if c.EndYear < c.StartYear {
		c.EndYear = c.StartYear
	}
	if c.OutputPath == "" {
		c.OutputPath = defaultOutputPath
	}
	if c.ProductID == "" {
		c.ProductID = defaultProductID
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Lookup.TimeoutSeconds <= 0 {
		c.Lookup.TimeoutSeconds = defaultTimeout
	}
	if c.Lookup.Concurrency <= 0 {
		c.Lookup.Concurrency = defaultParallel
	}
}

// ApplyEnv overlays DAYCAL_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return err
	}
	if o.Listen != "" {
		c.Listen = o.Listen
	}
	if o.Locale != "" {
		c.Locale = o.Locale
	}
	if o.StartYear != 0 {
		c.StartYear = o.StartYear
	}
	if o.EndYear != 0 {
		c.EndYear = o.EndYear
	}
	if o.RulesPath != "" {
		c.RulesPath = o.RulesPath
	}
	if o.OutputPath != "" {
		c.OutputPath = o.OutputPath
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.CacheDir != "" {
		c.Lookup.CacheDir = o.CacheDir
	}
	if o.Offline {
		c.Lookup.Offline = true
	}
	c.Normalize()
	return nil
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
//   - Environment overrides are applied last in both cases.
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
			return cfg, cfg.ApplyEnv()
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via WriteFileAtomic with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".daycal-*.tmp")
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

	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
