package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tzcal/internal/tz"
)

const (
	DefaultListen   = "127.0.0.1:8080"
	DefaultTimezone = "UTC"
	DefaultRefresh  = "*/15 * * * *"
	DefaultLogLevel = "info"
)

var validate = validator.New()

// SourceConfig is one ICS feed imported into a calendar. Exactly one of URL
// and Path is set.
type SourceConfig struct {
	ID   string `yaml:"id" json:"id" validate:"required"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty" validate:"omitempty,url,excluded_with=Path"`
	Path string `yaml:"path,omitempty" json:"path,omitempty" validate:"required_without=URL"`
}

// CalendarConfig declares a calendar created at startup.
type CalendarConfig struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	// Timezone is an IANA zone; empty means the top-level Timezone.
	Timezone string         `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	Sources  []SourceConfig `yaml:"sources,omitempty" json:"sources,omitempty" validate:"dive"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"required,hostname_port"`

	// Timezone is the IANA zone given to calendars that do not name one.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for re-importing
	// URL sources.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"required"`

	// Active names the calendar selected at startup.
	Active string `yaml:"active,omitempty" json:"active,omitempty"`

	Calendars []CalendarConfig `yaml:"calendars" json:"calendars" validate:"dive"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on every
	// endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty" validate:"omitempty"`
}

// DefaultConfig returns an in-memory default configuration with a single
// calendar in UTC.
func DefaultConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		Timezone:    DefaultTimezone,
		LogLevel:    DefaultLogLevel,
		RefreshCron: DefaultRefresh,
		Active:      "Default",
		Calendars:   []CalendarConfig{{Name: "Default"}},
	}
}

// Normalize fills in missing values so partially written files still load.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefresh
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		if c.Calendars[i].Timezone == "" {
			c.Calendars[i].Timezone = c.Timezone
		}
	}
}

// Validate checks struct tags, then the rules tags cannot express: zone
// identifiers resolve, calendar and source names are unique, and Active
// names a declared calendar.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := tz.Parse(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}

	names := make(map[string]struct{}, len(c.Calendars))
	sources := make(map[string]struct{})
	for _, cal := range c.Calendars {
		if _, dup := names[cal.Name]; dup {
			return fmt.Errorf("config: duplicate calendar %q", cal.Name)
		}
		names[cal.Name] = struct{}{}
		if cal.Timezone != "" {
			if _, err := tz.Parse(cal.Timezone); err != nil {
				return fmt.Errorf("config: calendar %q timezone %q: %w", cal.Name, cal.Timezone, err)
			}
		}
		for _, src := range cal.Sources {
			if _, dup := sources[src.ID]; dup {
				return fmt.Errorf("config: duplicate source id %q", src.ID)
			}
			sources[src.ID] = struct{}{}
		}
	}
	if c.Active != "" {
		if _, ok := names[c.Active]; !ok {
			return fmt.Errorf("config: active calendar %q is not declared", c.Active)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, leaving the
// file with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".tzcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
