// Package config loads engine parameters from covenant.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slyt3/Covenant/internal/assert"
)

// Duration wraps time.Duration with yaml support for the "72h" /
// "30m" notation.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"72h\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Party is a pre-registered account funded at boot. Used by the
// reference deployment; production deployments register parties through
// the registration oracle instead.
type Party struct {
	Address string `yaml:"address"`
	Balance uint64 `yaml:"balance"`
}

// Config represents the covenant.yaml structure.
type Config struct {
	// Fee schedule. FeeBps is the burn fee in basis points applied to the
	// reward at settlement; PostFee is the flat creation fee frozen into
	// each task when it is posted.
	MaxReward uint64 `yaml:"max_reward"`
	PostFee   uint64 `yaml:"post_fee"`
	FeeBps    uint64 `yaml:"fee_bps"`

	// Deadline windows. Evaluated lazily against recorded timestamps;
	// there is no background scheduler.
	OpenWindow      Duration `yaml:"open_window"`
	ProgressWindow  Duration `yaml:"progress_window"`
	ReviewWindow    Duration `yaml:"review_window"`
	TerminateWindow Duration `yaml:"terminate_window"`

	DBPath     string `yaml:"db_path"`
	KeyPath    string `yaml:"key_path"`
	ListenAddr string `yaml:"listen_addr"`
	RedisAddr  string `yaml:"redis_addr"`
	LogLevel   string `yaml:"log_level"`

	Parties []Party `yaml:"parties,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxReward:       1_000_000_000,
		PostFee:         100,
		FeeBps:          200,
		OpenWindow:      Duration(72 * time.Hour),
		ProgressWindow:  Duration(168 * time.Hour),
		ReviewWindow:    Duration(72 * time.Hour),
		TerminateWindow: Duration(48 * time.Hour),
		DBPath:          "data/covenant.db",
		KeyPath:         ".covenant_key",
		ListenAddr:      ":8480",
		LogLevel:        "info",
	}
}

// Load reads and validates the config file at path, overlaying it on
// the defaults. A missing file is not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := assert.Check(path != "", "config path must not be empty"); err != nil {
		return cfg, err
	}

	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err == nil {
			path = filepath.Join(wd, path)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config YAML: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks invariants the engine depends on.
func (c Config) Validate() error {
	if c.MaxReward == 0 {
		return fmt.Errorf("max_reward must be positive")
	}
	if c.FeeBps > 10_000 {
		return fmt.Errorf("fee_bps must not exceed 10000, got %d", c.FeeBps)
	}
	for _, w := range []struct {
		name string
		d    Duration
	}{
		{"open_window", c.OpenWindow},
		{"progress_window", c.ProgressWindow},
		{"review_window", c.ReviewWindow},
		{"terminate_window", c.TerminateWindow},
	} {
		if w.d <= 0 {
			return fmt.Errorf("%s must be positive", w.name)
		}
	}
	return nil
}
