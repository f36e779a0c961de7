package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"go-token-auth/internal/config"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		ServerPort:     "0",
		RequestTimeout: 5 * time.Second,
		AuthIssuer:     "app-test",
		AuthSecretKey:  strings.Repeat("s", 32),
		AuthExpiration: time.Minute,
		BcryptCost:     4,
		CORSOrigins:    []string{"http://localhost:8005"},
		PublicRoutes:   []string{"/auth/register", "/auth/login", "/health"},
		StoreDriver:    driver,
		RedisKeyPrefix: "auth",
	}
}

func registerAndLogin(t *testing.T, h http.Handler) {
	t.Helper()

	body := `{"username":"alice","password":"Secret123"}`
	for _, path := range []string{"/auth/register", "/auth/login"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", path, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewWithConfigStores(t *testing.T) {
	t.Parallel()

	t.Run("memory", func(t *testing.T) {
		application, err := NewWithConfig(context.Background(), testConfig(config.StoreMemory))
		require.NoError(t, err)
		t.Cleanup(application.Close)

		registerAndLogin(t, application.Handler())
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := testConfig(config.StoreSQLite)
		cfg.SQLitePath = filepath.Join(t.TempDir(), "nested", "auth.db")

		application, err := NewWithConfig(context.Background(), cfg)
		require.NoError(t, err)
		t.Cleanup(application.Close)

		registerAndLogin(t, application.Handler())
	})

	t.Run("redis", func(t *testing.T) {
		mini := miniredis.RunT(t)
		cfg := testConfig(config.StoreRedis)
		cfg.RedisAddr = mini.Addr()

		application, err := NewWithConfig(context.Background(), cfg)
		require.NoError(t, err)
		t.Cleanup(application.Close)

		registerAndLogin(t, application.Handler())
		require.True(t, mini.Exists("auth:user:alice"))
	})
}

func TestNewWithConfigFailsFast(t *testing.T) {
	t.Parallel()

	t.Run("unreachable redis", func(t *testing.T) {
		mini := miniredis.RunT(t)
		cfg := testConfig(config.StoreRedis)
		cfg.RedisAddr = mini.Addr()
		mini.Close()

		_, err := NewWithConfig(context.Background(), cfg)
		require.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewWithConfig(context.Background(), testConfig("mongo"))
		require.Error(t, err)
	})

	t.Run("short secret", func(t *testing.T) {
		cfg := testConfig(config.StoreMemory)
		cfg.AuthSecretKey = "short"

		_, err := NewWithConfig(context.Background(), cfg)
		require.Error(t, err)
	})
}
