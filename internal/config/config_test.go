package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// Load reads the process environment, so these tests use t.Setenv and do
// not run in parallel.

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_SECRET_KEY", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, "go-token-auth", cfg.AuthIssuer)
	require.Equal(t, time.Hour, cfg.AuthExpiration)
	require.Equal(t, 12, cfg.BcryptCost)
	require.Equal(t, []string{"http://localhost:8005"}, cfg.CORSOrigins)
	require.Equal(t, []string{"/auth/register", "/auth/login", "/health"}, cfg.PublicRoutes)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Equal(t, 10*time.Second, cfg.ServerReadHeaderTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_SECRET_KEY", testSecret)
	t.Setenv("AUTH_ISSUER", "issuer-x")
	t.Setenv("AUTH_EXPIRATION", "1500")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "issuer-x", cfg.AuthIssuer)
	require.Equal(t, 1500*time.Millisecond, cfg.AuthExpiration)
	require.Equal(t, 10, cfg.BcryptCost)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.Equal(t, StoreRedis, cfg.StoreDriver)
	require.Equal(t, "cache:6379", cfg.RedisAddr)
	require.Equal(t, 3, cfg.RedisDB)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRefusesToStart(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":         {},
		"short secret":           {"AUTH_SECRET_KEY": "too-short"},
		"zero expiration":        {"AUTH_SECRET_KEY": testSecret, "AUTH_EXPIRATION": "0"},
		"negative expiration":    {"AUTH_SECRET_KEY": testSecret, "AUTH_EXPIRATION": "-5"},
		"garbage expiration":     {"AUTH_SECRET_KEY": testSecret, "AUTH_EXPIRATION": "1h"},
		"overflowing expiration": {"AUTH_SECRET_KEY": testSecret, "AUTH_EXPIRATION": "9300000000000"},
		"bcrypt cost":            {"AUTH_SECRET_KEY": testSecret, "BCRYPT_COST": "40"},
		"unknown driver":         {"AUTH_SECRET_KEY": testSecret, "STORE_DRIVER": "mongo"},
		"postgres without url":   {"AUTH_SECRET_KEY": testSecret, "STORE_DRIVER": "postgres"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("AUTH_SECRET_KEY", "")
			for key, value := range env {
				t.Setenv(key, value)
			}

			_, err := Load()
			require.Error(t, err)
			require.NotContains(t, err.Error(), testSecret)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	// godotenv never overrides variables that are already set, even to "".
	for _, key := range []string{"AUTH_SECRET_KEY", "AUTH_ISSUER"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AUTH_SECRET_KEY="+testSecret+"\nAUTH_ISSUER=from-dotenv\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.AuthIssuer)
	require.Equal(t, testSecret, cfg.AuthSecretKey)
}

func TestValidateStoreDrivers(t *testing.T) {
	base := Config{
		ServerPort:     "8080",
		RequestTimeout: time.Second,
		AuthIssuer:     "issuer",
		AuthSecretKey:  strings.Repeat("k", 32),
		AuthExpiration: time.Minute,
		BcryptCost:     12,
		CORSOrigins:    []string{"http://localhost"},
	}

	sqlite := base
	sqlite.StoreDriver = StoreSQLite
	sqlite.SQLitePath = "./auth.db"
	require.NoError(t, sqlite.Validate())

	postgres := base
	postgres.StoreDriver = StorePostgres
	postgres.DatabaseURL = "postgres://localhost/auth"
	postgres.DBMaxConns = 2
	postgres.DBMinConns = 5
	require.Error(t, postgres.Validate())
	postgres.DBMinConns = 1
	require.NoError(t, postgres.Validate())

	redis := base
	redis.StoreDriver = StoreRedis
	redis.RedisAddr = "localhost:6379"
	require.Error(t, redis.Validate())
	redis.RedisKeyPrefix = "auth"
	require.NoError(t, redis.Validate())

	noOrigins := base
	noOrigins.StoreDriver = StoreMemory
	noOrigins.CORSOrigins = nil
	require.Error(t, noOrigins.Validate())
}
