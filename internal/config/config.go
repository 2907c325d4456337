// Package config loads and validates the statecore daemon configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/history"
	"git.ecosistema.dev/plataforma/statecore/internal/persist"
	"git.ecosistema.dev/plataforma/statecore/internal/retry"
	"git.ecosistema.dev/plataforma/statecore/internal/syncer"
)

// Config is the full daemon configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Sync        SyncConfig        `yaml:"sync"`
	Realtime    RealtimeConfig    `yaml:"realtime"`
	History     HistoryConfig     `yaml:"history"`
	Journal     JournalConfig     `yaml:"journal"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig configures the admin/metrics HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// PersistenceConfig selects and tunes the storage backend.
type PersistenceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Backend  string `yaml:"backend"` // "memory", "file", "nats"
	Key      string `yaml:"key"`
	Path     string `yaml:"path,omitempty"`     // file backend directory
	NATSURL  string `yaml:"nats_url,omitempty"` // nats backend server
	Bucket   string `yaml:"bucket,omitempty"`   // nats backend KV bucket
	Compress bool   `yaml:"compress"`
	Version  string `yaml:"version,omitempty"`
}

// SyncConfig tunes the server reconciliation loop.
type SyncConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	QueueCap int           `yaml:"queue_cap,omitempty"`
	Backoff  BackoffConfig `yaml:"backoff"`
}

// BackoffConfig tunes retry pacing after failed sync cycles.
type BackoffConfig struct {
	Mode    string        `yaml:"mode,omitempty"` // fixed|linear|exponential
	Initial time.Duration `yaml:"initial,omitempty"`
	Max     time.Duration `yaml:"max,omitempty"`
}

// RealtimeConfig configures the push channel.
type RealtimeConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// HistoryConfig bounds the time-travel log. History is on unless
// explicitly disabled.
type HistoryConfig struct {
	Disabled   bool `yaml:"disabled"`
	MaxEntries int  `yaml:"max_entries,omitempty"`
}

// JournalConfig configures the durable mutation journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // sqlite database file
}

// LoggingConfig tunes slog output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // json|text
}

// Default returns the configuration used when no file is given: in-memory
// persistence, history on, everything network-facing off.
func Default() Config {
	cfg := Config{}
	cfg.Persistence.Enabled = true
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML configuration file, expanding ${VAR} references from
// the environment. A .env file next to the process, when present, is
// loaded first and never overrides existing variables.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment variables from .env")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, ferrors.ConfigError("reading configuration file failed").
			WithContext("path", path).
			WithCause(err).
			Build()
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, ferrors.ConfigError("parsing configuration file failed").
			WithContext("path", path).
			WithCause(err).
			Build()
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = "memory"
	}
	if c.Persistence.Key == "" {
		c.Persistence.Key = persist.DefaultKey
	}
	if c.Persistence.Bucket == "" {
		c.Persistence.Bucket = "statecore"
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = syncer.DefaultInterval
	}
	if c.Sync.Timeout <= 0 {
		c.Sync.Timeout = 10 * time.Second
	}
	if c.Sync.Backoff.Mode == "" {
		c.Sync.Backoff.Mode = string(retry.BackoffExponential)
	}
	if c.Sync.Backoff.Initial <= 0 {
		c.Sync.Backoff.Initial = time.Second
	}
	if c.Sync.Backoff.Max <= 0 {
		c.Sync.Backoff.Max = time.Minute
	}
	if c.Realtime.Subject == "" {
		c.Realtime.Subject = "ecosistema.state.updates"
	}
	if c.History.MaxEntries <= 0 {
		c.History.MaxEntries = history.DefaultMaxEntries
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "statecore.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// BackoffPolicy converts the configured backoff into a retry policy.
// Sync retries are unbounded; giving up is the caller's decision.
func (c SyncConfig) BackoffPolicy() retry.Policy {
	return retry.NewPolicy(retry.BackoffMode(c.Backoff.Mode), c.Backoff.Initial, c.Backoff.Max, -1)
}
