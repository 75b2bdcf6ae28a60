package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8000, MaxUploadSize: 1024, MaxImagePixels: 1 << 20},
		Database: DatabaseConfig{Driver: DriverSQLite, Path: ":memory:"},
		Storage:  StorageConfig{Backend: StorageFilesystem, DataDir: "/tmp/media"},
		Auth:     AuthConfig{TokenStore: TokenStoreDatabase, BcryptCost: 4, MinPasswordLength: 5},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Metrics:  MetricsConfig{Enabled: false},
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: sqlite\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "./data/pantry.db", cfg.Database.Path)
	assert.Equal(t, StorageFilesystem, cfg.Storage.Backend)
	assert.Equal(t, "uploads/recipe", cfg.Storage.KeyPrefix)
	assert.Equal(t, TokenStoreDatabase, cfg.Auth.TokenStore)
	assert.Equal(t, 5, cfg.Auth.MinPasswordLength)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(89478485), cfg.Server.MaxImagePixels)
	assert.True(t, cfg.Database.IsEmbedded())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 8080
database:
  driver: sqlite
  path: /var/lib/pantry.db
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("PANTRY_SERVER_PORT", "9999")
	t.Setenv("PANTRY_AUTH_MIN_PASSWORD_LENGTH", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/var/lib/pantry.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Auth.MinPasswordLength)
}

func TestLoad_InvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: mysql\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "image pixel cap missing",
			mutate:  func(c *Config) { c.Server.MaxImagePixels = 0 },
			wantErr: "server.max_image_pixels",
		},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.Database = DatabaseConfig{Driver: DriverPostgres, User: "u", Database: "d"} },
			wantErr: "database.host",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *Config) { c.Storage.Backend = "ftp" },
			wantErr: "storage.backend",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Storage.Backend = StorageS3 },
			wantErr: "storage.s3.bucket",
		},
		{
			name: "minio without bucket",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageMinIO
				c.Storage.MinIO.Endpoint = "localhost:9000"
			},
			wantErr: "storage.minio.bucket",
		},
		{
			name:    "redis token store with redis disabled",
			mutate:  func(c *Config) { c.Auth.TokenStore = TokenStoreRedis },
			wantErr: "redis.enabled",
		},
		{
			name: "redis token store with redis enabled",
			mutate: func(c *Config) {
				c.Auth.TokenStore = TokenStoreRedis
				c.Redis.Enabled = true
			},
		},
		{
			name:    "unknown token store",
			mutate:  func(c *Config) { c.Auth.TokenStore = "memcached" },
			wantErr: "auth.token_store",
		},
		{
			name:    "zero password length",
			mutate:  func(c *Config) { c.Auth.MinPasswordLength = 0 },
			wantErr: "auth.min_password_length",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAddrHelpers(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8000", ServerConfig{Host: "127.0.0.1", Port: 8000}.Addr())
	assert.Equal(t, "redis:6379", RedisConfig{Host: "redis", Port: 6379}.Addr())
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=pantry sslmode=disable",
		DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "pantry", SSLMode: "disable"}.DSN(),
	)
}
