package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"go-token-auth/internal/config"
	"go-token-auth/internal/database"
	"go-token-auth/internal/handler"
	"go-token-auth/internal/middleware"
	"go-token-auth/internal/password"
	"go-token-auth/internal/repository"
	"go-token-auth/internal/router"
	"go-token-auth/internal/service"
	"go-token-auth/internal/token"
)

const shutdownTimeout = 10 * time.Second

// credentialBackend is a CredentialStore that can also report its health.
type credentialBackend interface {
	service.CredentialStore
	Health(ctx context.Context) error
}

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

// New loads configuration, opens the configured credential store and builds
// the HTTP server. logLevel, when non-nil, is set to the configured level.
func New(logLevel *slog.LevelVar) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != nil {
		logLevel.Set(cfg.LogLevel)
	}

	return NewWithConfig(context.Background(), cfg)
}

func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	codec, err := token.NewCodec(cfg.AuthIssuer, cfg.AuthSecretKey, cfg.AuthExpiration)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	authService, err := service.NewAuthService(store, hasher)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	gate := middleware.NewAuthGate(codec, authService, cfg.PublicRoutes)
	appRouter := router.New(cfg, gate, router.Handlers{
		Auth:   handler.NewAuthHandler(authService, codec),
		Health: handler.NewHealthHandler(store),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	slog.Info("application initialized",
		"store", cfg.StoreDriver,
		"issuer", cfg.AuthIssuer,
		"token_ttl_ms", cfg.AuthExpiration.Milliseconds(),
		"bcrypt_cost", cfg.BcryptCost,
		"public_routes", cfg.PublicRoutes,
	)

	return &App{
		server:       server,
		cleanupFuncs: []func(){cleanup},
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (credentialBackend, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		slog.Info("database ready")
		return repository.NewUserRepository(db.Pool), db.Close, nil

	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := database.Migrate(ctx, db, database.DialectSQLite); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to ensure sqlite schema: %w", err)
		}
		return repository.NewSQLiteUserRepository(db), closeSQL(db), nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return repository.NewRedisUserRepository(client, cfg.RedisKeyPrefix), func() { _ = client.Close() }, nil

	case config.StoreMemory:
		slog.Warn("using in-memory credential store; registrations are lost on restart")
		return repository.NewMemoryUserRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func closeSQL(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
}

// Handler exposes the assembled router.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Close() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-serveErr:
		a.Close()
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-stop:
		slog.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	// Stores close after in-flight requests have drained.
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
