package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
)

func noEnv(string) (string, bool) { return "", false }

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, RemoteMemory, cfg.Remote.Backend)
	assert.Equal(t, SourceProbe, cfg.Connectivity.Source)
	assert.Zero(t, cfg.Sync.Interval, "periodic passes are opt-in")
	assert.Equal(t, 3, cfg.Sync.MaxRejections)
	assert.Equal(t, 10*time.Second, cfg.Remote.FetchTimeout)
}

func TestLoad_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.yaml")
	data := `
device:
  cash_register_id: KASIR-2
storage:
  data_dir: /var/lib/itongpos
remote:
  backend: postgres
  database_url: postgres://pos@localhost/pos
  fetch_timeout: 3s
sync:
  interval: 0s
  max_rejections: 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("POS_HTTP_ADDR", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "KASIR-2", cfg.Device.CashRegisterID)
	assert.Equal(t, "/var/lib/itongpos", cfg.Storage.DataDir)
	assert.Equal(t, RemotePostgres, cfg.Remote.Backend)
	assert.Equal(t, 3*time.Second, cfg.Remote.FetchTimeout)
	assert.Equal(t, 10*time.Second, cfg.Remote.WriteTimeout, "unset fields keep defaults")
	assert.Equal(t, time.Duration(0), cfg.Sync.Interval)
	assert.Equal(t, 5, cfg.Sync.MaxRejections)
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, apperrors.ErrConfigInvalid, apperrors.CodeOf(err))
}

func TestLoad_badYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Equal(t, apperrors.ErrConfigInvalid, apperrors.CodeOf(err))
}

func TestLoad_env(t *testing.T) {
	t.Setenv("POS_CASH_REGISTER_ID", "REG-09")
	t.Setenv("POS_DATA_DIR", t.TempDir())
	t.Setenv("POS_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "REG-09", cfg.Device.CashRegisterID)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"POS_STORAGE_BACKEND": "redis",
		"POS_REDIS_URL":       "redis://localhost:6379/0",
		"POS_REMOTE_BACKEND":  "postgres",
		"POS_DATABASE_URL":    "postgres://localhost/pos",
		"POS_HTTP_ADDR":       "",
	}
	cfg := Default()
	cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})

	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Storage.RedisURL)
	assert.Equal(t, "postgres://localhost/pos", cfg.Remote.DatabaseURL)
	assert.Equal(t, "127.0.0.1:8090", cfg.HTTP.Addr, "empty values are ignored")
	assert.NoError(t, cfg.Validate())

	unchanged := Default()
	unchanged.ApplyEnv(noEnv)
	assert.Equal(t, Default(), unchanged)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no register", func(c *Config) { c.Device.CashRegisterID = " " }},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "leveldb" }},
		{"sqlite without dir", func(c *Config) { c.Storage.DataDir = "" }},
		{"redis without url", func(c *Config) { c.Storage.Backend = StorageRedis }},
		{"unknown remote", func(c *Config) { c.Remote.Backend = "mysql" }},
		{"postgres without url", func(c *Config) { c.Remote.Backend = RemotePostgres }},
		{"zero fetch timeout", func(c *Config) { c.Remote.FetchTimeout = 0 }},
		{"unknown source", func(c *Config) { c.Connectivity.Source = "wifi" }},
		{"zero probe interval", func(c *Config) { c.Connectivity.ProbeInterval = 0 }},
		{"negative interval", func(c *Config) { c.Sync.Interval = -time.Second }},
		{"zero rejections", func(c *Config) { c.Sync.MaxRejections = 0 }},
		{"zero action timeout", func(c *Config) { c.Sync.ActionTimeout = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Equal(t, apperrors.ErrConfigInvalid, apperrors.CodeOf(cfg.Validate()))
		})
	}
}

func TestValidate_hostSourceIgnoresProbe(t *testing.T) {
	cfg := Default()
	cfg.Connectivity.Source = SourceHost
	cfg.Connectivity.ProbeInterval = 0
	assert.NoError(t, cfg.Validate())
}

func TestRedisNamespace(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "REG-01", cfg.RedisNamespace())
	cfg.Storage.Namespace = "outlet-3"
	assert.Equal(t, "outlet-3", cfg.RedisNamespace())
}

func TestParse_json(t *testing.T) {
	cfg, err := Parse([]byte(`{"device":{"cash_register_id":"HP-1"},"connectivity":{"source":"host"},"sync":{"interval":"30s"}}`))
	require.NoError(t, err)

	assert.Equal(t, "HP-1", cfg.Device.CashRegisterID)
	assert.Equal(t, SourceHost, cfg.Connectivity.Source)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend, "unset fields keep defaults")

	_, err = Parse([]byte(`{"storage":{"backend":"floppy"}}`))
	assert.Equal(t, apperrors.ErrConfigInvalid, apperrors.CodeOf(err))

	_, err = Parse([]byte(`{"device":`))
	assert.Equal(t, apperrors.ErrConfigInvalid, apperrors.CodeOf(err))
}
