package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"

	minSecretLength = 32
	minBcryptCost   = 4
	maxBcryptCost   = 31
)

// Config is loaded once at startup and treated as read-only afterwards.
type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	AuthIssuer     string
	AuthSecretKey  string
	AuthExpiration time.Duration
	BcryptCost     int

	CORSOrigins  []string
	PublicRoutes []string

	StoreDriver    string
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	SQLitePath     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	LogLevel slog.Level
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		AuthIssuer:              getEnv("AUTH_ISSUER", "go-token-auth"),
		AuthSecretKey:           strings.TrimSpace(os.Getenv("AUTH_SECRET_KEY")),
		AuthExpiration:          getMillis("AUTH_EXPIRATION", time.Hour),
		BcryptCost:              getInt("BCRYPT_COST", 12),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "http://localhost:8005")),
		PublicRoutes:            splitCSV(getEnv("PUBLIC_ROUTES", "/auth/register,/auth/login,/health")),
		StoreDriver:             strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 2)),
		SQLitePath:              getEnv("SQLITE_PATH", "./data/auth.db"),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getInt("REDIS_DB", 0),
		RedisKeyPrefix:          getEnv("REDIS_KEY_PREFIX", "auth"),
		LogLevel:                getLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first setting the service cannot run with. Secret
// values are never included in the message.
func (c *Config) Validate() error {
	if c.AuthSecretKey == "" {
		return fmt.Errorf("AUTH_SECRET_KEY is required")
	}

	if len(c.AuthSecretKey) < minSecretLength {
		return fmt.Errorf("AUTH_SECRET_KEY must be at least %d bytes", minSecretLength)
	}

	if strings.TrimSpace(c.AuthIssuer) == "" {
		return fmt.Errorf("AUTH_ISSUER cannot be empty")
	}

	if c.AuthExpiration < time.Millisecond {
		return fmt.Errorf("AUTH_EXPIRATION must be a positive number of milliseconds")
	}

	if c.BcryptCost < minBcryptCost || c.BcryptCost > maxBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", minBcryptCost, maxBcryptCost)
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS and DB_MAX_CONNS must satisfy 0 <= min <= max, max > 0")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORE_DRIVER=redis")
		}
		if strings.TrimSpace(c.RedisKeyPrefix) == "" {
			return fmt.Errorf("REDIS_KEY_PREFIX cannot be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver)
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

// getMillis reads a whole number of milliseconds. Unparseable or
// out-of-range values yield zero so that Validate rejects them instead of
// silently using the default.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

func getMillis(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v > maxMillis || v < -maxMillis {
		return 0
	}

	return time.Duration(v) * time.Millisecond
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getLevel(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}

	return level
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
