package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen          = "127.0.0.1:8080"
	defaultLocale          = "en-US"
	defaultFirstWeekDay    = 2 // Monday, counting 1 = Sunday
	defaultMode            = "week"
	defaultWheelThrottleMS = 300
	defaultRefreshCron     = "*/15 * * * *"
	defaultLogLevel        = "info"
)

// RefreshOff as RefreshCron turns scheduled source reloading off.
const RefreshOff = "off"

var validModes = map[string]bool{
	"year":   true,
	"years":  true,
	"month":  true,
	"months": true,
	"week":   true,
	"day":    true,
}

// SourceConfig describes a local ICS file whose events are imported into the
// in-memory event store.
type SourceConfig struct {
	// ID is an internal identifier used to replace a source's events on reload.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Path is the filesystem path of the .ics file.
	Path string `yaml:"path" json:"path"`
	// Color is applied to imported events that carry no COLOR property.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the JSON API.
	Listen string `yaml:"listen" json:"listen"`

	// Locale is a BCP-47 tag used for month and weekday names (e.g. "ko-KR").
	Locale string `yaml:"locale" json:"locale"`

	// Timezone is the IANA zone that "today" and imported events are
	// expressed in. Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// FirstWeekDay is the first column of every week, 1 = Sunday ... 7 = Saturday.
	FirstWeekDay int `yaml:"first_week_day" json:"first_week_day"`

	// DefaultMode is the view mode the controller starts in.
	DefaultMode string `yaml:"default_mode" json:"default_mode"`

	// WheelThrottleMS coalesces wheel navigation within this window.
	WheelThrottleMS int `yaml:"wheel_throttle_ms" json:"wheel_throttle_ms"`

	// RefreshCron is the cron schedule for reloading Sources. RefreshOff
	// disables reloading; empty means the default schedule.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Sources is the list of ICS files imported at startup and on refresh.
	Sources []SourceConfig `yaml:"sources" json:"sources"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Locale:          defaultLocale,
		FirstWeekDay:    defaultFirstWeekDay,
		DefaultMode:     defaultMode,
		WheelThrottleMS: defaultWheelThrottleMS,
		RefreshCron:     defaultRefreshCron,
		LogLevel:        defaultLogLevel,
		Sources:         []SourceConfig{},
	}
}

// Normalize fills in missing or out-of-range values so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	if c.FirstWeekDay < 1 || c.FirstWeekDay > 7 {
		c.FirstWeekDay = defaultFirstWeekDay
	}
	if !validModes[c.DefaultMode] {
		c.DefaultMode = defaultMode
	}
	if c.WheelThrottleMS <= 0 {
		c.WheelThrottleMS = defaultWheelThrottleMS
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		if c.Sources[i].ID == "" {
			if c.Sources[i].Name != "" {
				c.Sources[i].ID = c.Sources[i].Name
			} else {
				c.Sources[i].ID = c.Sources[i].Path
			}
		}
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist a default config is written there with 0600
// permissions and returned. Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file in the same directory, then
// rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
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

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
