// Package config loads the POS core configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Remote backends.
const (
	RemotePostgres = "postgres"
	RemoteMemory   = "memory"
)

// Connectivity sources.
const (
	SourceProbe = "probe" // the core pings the remote store itself
	SourceHost  = "host"  // the host application pushes network state
)

// Config is the full core configuration.
type Config struct {
	Device       DeviceConfig       `yaml:"device"`
	Storage      StorageConfig      `yaml:"storage"`
	Remote       RemoteConfig       `yaml:"remote"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Sync         SyncConfig         `yaml:"sync"`
	HTTP         HTTPConfig         `yaml:"http"`
	Log          LogConfig          `yaml:"log"`
}

// DeviceConfig identifies the register.
type DeviceConfig struct {
	CashRegisterID string `yaml:"cash_register_id"`
}

// StorageConfig selects where the queue and device state live.
type StorageConfig struct {
	Backend   string `yaml:"backend"`   // sqlite or redis (default: sqlite)
	DataDir   string `yaml:"data_dir"`  // sqlite directory (default: ./data)
	RedisURL  string `yaml:"redis_url"` // required for redis
	Namespace string `yaml:"namespace"` // redis key namespace (default: cash register id)
}

// RemoteConfig selects the remote persistence service.
type RemoteConfig struct {
	Backend      string        `yaml:"backend"`       // postgres or memory (default: memory)
	DatabaseURL  string        `yaml:"database_url"`  // required for postgres
	FetchTimeout time.Duration `yaml:"fetch_timeout"` // deadline for reads (default: 10 seconds)
	WriteTimeout time.Duration `yaml:"write_timeout"` // deadline for the direct checkout write (default: 10 seconds)
}

// ConnectivityConfig controls how the live network state is obtained.
type ConnectivityConfig struct {
	Source        string        `yaml:"source"`         // probe or host (default: probe)
	ProbeInterval time.Duration `yaml:"probe_interval"` // default: 15 seconds
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`  // default: 5 seconds
}

// SyncConfig controls queue draining.
type SyncConfig struct {
	Interval      time.Duration `yaml:"interval"`       // periodic pass while online, 0 disables (default: 0)
	MaxRejections int           `yaml:"max_rejections"` // permanent rejections before quarantine (default: 3)
	ActionTimeout time.Duration `yaml:"action_timeout"` // deadline per action (default: 30 seconds)
}

// HTTPConfig is the desktop REST API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // default: 127.0.0.1:8090
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error (default: info)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{CashRegisterID: "REG-01"},
		Storage: StorageConfig{
			Backend: StorageSQLite,
			DataDir: "./data",
		},
		Remote: RemoteConfig{
			Backend:      RemoteMemory,
			FetchTimeout: 10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Connectivity: ConnectivityConfig{
			Source:        SourceProbe,
			ProbeInterval: 15 * time.Second,
			ProbeTimeout:  5 * time.Second,
		},
		Sync: SyncConfig{
			Interval:      0,
			MaxRejections: 3,
			ActionTimeout: 30 * time.Second,
		},
		HTTP: HTTPConfig{Addr: "127.0.0.1:8090"},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "failed to read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, fmt.Sprintf("failed to parse %s", path), err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML (or JSON) document over the defaults and validates
// the result. The environment is not consulted.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "failed to parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the POS_* environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("POS_CASH_REGISTER_ID", &c.Device.CashRegisterID)
	set("POS_STORAGE_BACKEND", &c.Storage.Backend)
	set("POS_DATA_DIR", &c.Storage.DataDir)
	set("POS_REDIS_URL", &c.Storage.RedisURL)
	set("POS_REMOTE_BACKEND", &c.Remote.Backend)
	set("POS_DATABASE_URL", &c.Remote.DatabaseURL)
	set("POS_HTTP_ADDR", &c.HTTP.Addr)
	set("POS_LOG_LEVEL", &c.Log.Level)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return apperrors.New(apperrors.ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Device.CashRegisterID) == "" {
		return invalid("device.cash_register_id is required")
	}

	switch c.Storage.Backend {
	case StorageSQLite:
		if c.Storage.DataDir == "" {
			return invalid("storage.data_dir is required for sqlite")
		}
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return invalid("storage.redis_url is required for redis")
		}
	default:
		return invalid("unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.Remote.Backend {
	case RemoteMemory:
	case RemotePostgres:
		if c.Remote.DatabaseURL == "" {
			return invalid("remote.database_url is required for postgres")
		}
	default:
		return invalid("unknown remote.backend %q", c.Remote.Backend)
	}
	if c.Remote.FetchTimeout <= 0 || c.Remote.WriteTimeout <= 0 {
		return invalid("remote timeouts must be positive")
	}

	switch c.Connectivity.Source {
	case SourceProbe:
		if c.Connectivity.ProbeInterval <= 0 || c.Connectivity.ProbeTimeout <= 0 {
			return invalid("connectivity probe interval and timeout must be positive")
		}
	case SourceHost:
	default:
		return invalid("unknown connectivity.source %q", c.Connectivity.Source)
	}

	if c.Sync.Interval < 0 {
		return invalid("sync.interval must not be negative")
	}
	if c.Sync.MaxRejections < 1 {
		return invalid("sync.max_rejections must be at least 1")
	}
	if c.Sync.ActionTimeout <= 0 {
		return invalid("sync.action_timeout must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("unknown log.level %q", c.Log.Level)
	}
	return nil
}

// RedisNamespace returns the key namespace for the redis backend.
func (c *Config) RedisNamespace() string {
	if c.Storage.Namespace != "" {
		return c.Storage.Namespace
	}
	return c.Device.CashRegisterID
}
