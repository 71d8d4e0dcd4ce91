package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Log        LogConfig          `yaml:"log"`
	Database   DatabaseConfig     `yaml:"database"`
	History    HistoryConfig      `yaml:"history"`
	Backend    BackendConfig      `yaml:"backend"`
	Reconciler ReconcilerConfig   `yaml:"reconciler"`
	Providers  map[string]Options `yaml:"providers"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// DatabaseConfig contains database settings for the reconciliation history
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig contains reconciliation ledger settings
type HistoryConfig struct {
	Enabled       *bool `yaml:"enabled"`        // Record every run (default: true)
	RetentionDays int   `yaml:"retention_days"` // Entries older than this are pruned (default: 30)
}

// IsEnabled returns whether history is recorded, defaulting to true
func (c HistoryConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// BackendConfig selects the live-state backend
type BackendConfig struct {
	Type string `yaml:"type"` // Only "sandbox" is built in
	Path string `yaml:"path"` // SQLite file for the sandbox backend
}

// ReconcilerConfig contains change executor settings
type ReconcilerConfig struct {
	Workers      int      `yaml:"workers"`        // Concurrent handler invocations (default: 4)
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // Backend calls per second, 0 = unlimited
	Timeout      Duration `yaml:"timeout"`        // Overall invocation timeout (default: 5m)
}

// GetWorkers returns worker count with default
func (c *ReconcilerConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// Provider returns the options configured for a provider, never nil.
func (c *Config) Provider(name string) Options {
	if opts, ok := c.Providers[name]; ok && opts != nil {
		return opts
	}
	return Options{}
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with all defaults applied, used when no
// configuration file exists.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./streamctl.sqlite"
	}

	// History defaults
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = 30
	}

	// Backend defaults - the sandbox shares the history database unless told otherwise
	if cfg.Backend.Type == "" {
		cfg.Backend.Type = "sandbox"
	}
	if cfg.Backend.Path == "" {
		cfg.Backend.Path = cfg.Database.Path
	}

	// Reconciler defaults
	if cfg.Reconciler.Workers == 0 {
		cfg.Reconciler.Workers = 4
	}
	if cfg.Reconciler.Timeout == 0 {
		cfg.Reconciler.Timeout = Duration(5 * time.Minute)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]Options)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}
