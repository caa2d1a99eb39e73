// internal/config/types.go
package config

// Global configuration loaded from config.yaml
type Global struct {
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
	Storage StorageConfig `yaml:"storage"`
	Rules   RulesConfig   `yaml:"rules"`
	Session SessionConfig `yaml:"session"`
}

type DaemonConfig struct {
	LogLevel      string `yaml:"log_level"`
	ListenAddress string `yaml:"listen_address"`
	ListenPort    int    `yaml:"listen_port"`
}

type LoggingConfig struct {
	Format    string `yaml:"format"`
	File      string `yaml:"file"`        // empty = stderr
	MaxSizeMB int    `yaml:"max_size_mb"` // rotation threshold for File
}

type StorageConfig struct {
	DataDir       string `yaml:"data_dir"`
	PreferencesDB string `yaml:"preferences_db"`
	SessionsDB    string `yaml:"sessions_db"` // empty = in-memory
}

type RulesConfig struct {
	File string `yaml:"file"` // empty = built-in table
}

type SessionConfig struct {
	MaxEntries      int    `yaml:"max_entries"`
	TTL             string `yaml:"ttl"`
	CleanupSchedule string `yaml:"cleanup_schedule"`
}
