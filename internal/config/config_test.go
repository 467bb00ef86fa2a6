package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAPIConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *APIConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
server:
  host: 127.0.0.1
  port: 9090
database:
  host: localhost
  port: 5432
  user: testuser
  password: testpass
  dbname: testdb
opensea:
  api_key: "primary-key"
  assets_api_key: "assets-key"
  retry_attempts: 5
  retry_delay: "500ms"
cache:
  stats_ttl: "30m"
jobs:
  shared_secret: "cron-secret"
registry_path: "config/test-decks.json"
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "testdb", cfg.Database.DBName)
				assert.Equal(t, "primary-key", cfg.OpenSea.APIKey)
				assert.Equal(t, "assets-key", cfg.OpenSea.AssetsAPIKey)
				assert.Equal(t, uint64(5), cfg.OpenSea.RetryAttempts)
				assert.Equal(t, 500*time.Millisecond, cfg.OpenSea.RetryDelay)
				assert.Equal(t, 30*time.Minute, cfg.Cache.StatsTTL)
				assert.Equal(t, "cron-secret", cfg.Jobs.SharedSecret)
				assert.Equal(t, "config/test-decks.json", cfg.RegistryPath)
			},
		},
		{
			name: "config with defaults",
			configFile: `
database:
  host: localhost
  dbname: testdb
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.False(t, cfg.Debug)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, "https://api.opensea.io/api/v2", cfg.OpenSea.APIURL)
				assert.Equal(t, uint64(10), cfg.OpenSea.RetryAttempts)
				assert.Equal(t, 3*time.Second, cfg.OpenSea.RetryDelay)
				assert.Equal(t, time.Hour, cfg.Cache.StatsTTL)
				assert.Equal(t, "config/decks.json", cfg.RegistryPath)
			},
		},
		{
			name:        "invalid yaml",
			configFile:  `debug: [unclosed`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.configFile)

			cfg, err := LoadAPIConfig(path, t.TempDir())
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadAPIConfigFromEnv(t *testing.T) {
	t.Setenv("DECK_INDEXER_DATABASE_HOST", "env-host")
	t.Setenv("DECK_INDEXER_OPENSEA_API_KEY", "env-key")
	t.Setenv("DECK_INDEXER_JOBS_SHARED_SECRET", "env-secret")

	// Point the config file at an empty directory so only env applies.
	cfg, err := LoadAPIConfig("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, "env-key", cfg.OpenSea.APIKey)
	assert.Equal(t, "env-secret", cfg.Jobs.SharedSecret)
}

func TestLoadSweeperConfig(t *testing.T) {
	t.Run("valid config with schedule defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
database:
  host: localhost
  dbname: testdb
`)

		cfg, err := LoadSweeperConfig(path, t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, "0 0 6 * * *", cfg.Schedules.DailyStats)
		assert.Equal(t, "0 0 7 * * 1", cfg.Schedules.WeeklyHolders)
		assert.Equal(t, 5, cfg.Database.MaxOpenConns)
		assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	})

	t.Run("missing database host is rejected", func(t *testing.T) {
		path := writeConfigFile(t, `
database:
  dbname: testdb
`)

		_, err := LoadSweeperConfig(path, t.TempDir())
		assert.Error(t, err)
	})

	t.Run("missing database name is rejected", func(t *testing.T) {
		path := writeConfigFile(t, `
database:
  host: localhost
`)

		_, err := LoadSweeperConfig(path, t.TempDir())
		assert.Error(t, err)
	})
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "db",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=user password=pass dbname=db sslmode=disable",
		cfg.DSN())
}
