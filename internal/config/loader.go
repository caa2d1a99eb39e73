// internal/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "NOPE_CONFIG"

// EnvPreferencesDB overrides storage.preferences_db.
const EnvPreferencesDB = "NOPE_PREFS_DB"

// DefaultPath returns ~/.nope/config.yaml, or the value of NOPE_CONFIG.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// LoadGlobal loads the global configuration from a YAML file
func LoadGlobal(path string) (*Global, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Global
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyGlobalDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads path, falling back to defaults when the file does not exist.
func Load(path string) (*Global, error) {
	cfg, err := LoadGlobal(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns the configuration used when no file is present.
func Default() *Global {
	var cfg Global
	applyGlobalDefaults(&cfg)
	return &cfg
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Global) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// SessionTTL returns the parsed session.ttl.
func (g *Global) SessionTTL() time.Duration {
	d, err := time.ParseDuration(g.Session.TTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// Addr returns the daemon listen address as host:port.
func (g *Global) Addr() string {
	return fmt.Sprintf("%s:%d", g.Daemon.ListenAddress, g.Daemon.ListenPort)
}

func applyGlobalDefaults(cfg *Global) {
	if cfg.Daemon.LogLevel == "" {
		cfg.Daemon.LogLevel = "info"
	}
	if cfg.Daemon.ListenPort == 0 {
		cfg.Daemon.ListenPort = 9878
	}
	if cfg.Daemon.ListenAddress == "" {
		cfg.Daemon.ListenAddress = "127.0.0.1"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 50
	}
	cfg.Logging.File = expandHome(cfg.Logging.File)

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir()
	}
	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)
	if p := os.Getenv(EnvPreferencesDB); p != "" {
		cfg.Storage.PreferencesDB = p
	}
	if cfg.Storage.PreferencesDB == "" {
		cfg.Storage.PreferencesDB = filepath.Join(cfg.Storage.DataDir, "preferences.db")
	}
	cfg.Storage.PreferencesDB = expandHome(cfg.Storage.PreferencesDB)
	cfg.Storage.SessionsDB = expandHome(cfg.Storage.SessionsDB)
	cfg.Rules.File = expandHome(cfg.Rules.File)

	if cfg.Session.MaxEntries <= 0 {
		cfg.Session.MaxEntries = 1000
	}
	if cfg.Session.TTL == "" {
		cfg.Session.TTL = "24h"
	}
	if cfg.Session.CleanupSchedule == "" {
		cfg.Session.CleanupSchedule = "0 */10 * * * *"
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Global) error {
	var errs []error

	if !validLogLevels[strings.ToLower(cfg.Daemon.LogLevel)] {
		errs = append(errs, fmt.Errorf("daemon.log_level: unknown level %q", cfg.Daemon.LogLevel))
	}
	if cfg.Daemon.ListenPort < 1 || cfg.Daemon.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("daemon.listen_port: %d out of range", cfg.Daemon.ListenPort))
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, fmt.Errorf("logging.format: must be json or text, got %q", cfg.Logging.Format))
	}
	if d, err := time.ParseDuration(cfg.Session.TTL); err != nil {
		errs = append(errs, fmt.Errorf("session.ttl: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl: must be positive, got %s", d))
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Session.CleanupSchedule); err != nil {
		errs = append(errs, fmt.Errorf("session.cleanup_schedule: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nope"
	}
	return filepath.Join(home, ".nope")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
