package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"go-token-auth/internal/database"
	"go-token-auth/internal/model"
)

type credentialStore interface {
	Create(ctx context.Context, u model.User) error
	FindByUsername(ctx context.Context, username string) (model.User, error)
	Health(ctx context.Context) error
}

func newUser(username string) model.User {
	return model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: "$2a$04$notarealhashnotarealhashnotarealhashnotarealhashnot",
		CreatedAt:    time.UnixMilli(1_700_000_000_000).UTC(),
	}
}

func runCredentialStoreSuite(t *testing.T, newStore func(t *testing.T) credentialStore) {
	t.Helper()

	t.Run("create then find", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		user := newUser("Alice")

		require.NoError(t, store.Create(ctx, user))

		for _, lookup := range []string{"Alice", "alice", "ALICE", "  alice "} {
			found, err := store.FindByUsername(ctx, lookup)
			require.NoError(t, err, lookup)
			require.Equal(t, user.ID, found.ID)
			require.Equal(t, "Alice", found.Username)
			require.Equal(t, user.PasswordHash, found.PasswordHash)
			require.True(t, user.CreatedAt.Equal(found.CreatedAt))
		}
	})

	t.Run("missing user", func(t *testing.T) {
		store := newStore(t)

		_, err := store.FindByUsername(context.Background(), "nobody")
		require.ErrorIs(t, err, model.ErrUserNotFound)
	})

	t.Run("duplicate username ignores case", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Create(ctx, newUser("bob")))
		require.ErrorIs(t, store.Create(ctx, newUser("BOB")), model.ErrUsernameTaken)

		found, err := store.FindByUsername(ctx, "bob")
		require.NoError(t, err)
		require.Equal(t, "bob", found.Username)
	})

	t.Run("non-ASCII usernames fold like ASCII", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		user := newUser("Émile")

		require.NoError(t, store.Create(ctx, user))

		for _, lookup := range []string{"Émile", "émile", "ÉMILE"} {
			found, err := store.FindByUsername(ctx, lookup)
			require.NoError(t, err, lookup)
			require.Equal(t, user.ID, found.ID)
			require.Equal(t, "Émile", found.Username)
		}

		require.ErrorIs(t, store.Create(ctx, newUser("émile")), model.ErrUsernameTaken)
	})

	t.Run("concurrent registrations succeed once", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const attempts = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			taken     int
			other     []error
		)
		start := make(chan struct{})
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := store.Create(ctx, newUser("carol"))

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, model.ErrUsernameTaken):
					taken++
				default:
					other = append(other, err)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Empty(t, other)
		require.Equal(t, 1, succeeded)
		require.Equal(t, attempts-1, taken)
	})

	t.Run("health", func(t *testing.T) {
		require.NoError(t, newStore(t).Health(context.Background()))
	})
}

func TestMemoryUserRepository(t *testing.T) {
	t.Parallel()

	runCredentialStoreSuite(t, func(t *testing.T) credentialStore {
		return NewMemoryUserRepository()
	})
}

func TestMemoryUserRepositoryHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	store := NewMemoryUserRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Create(ctx, newUser("dave")), context.Canceled)
	_, err := store.FindByUsername(ctx, "dave")
	require.ErrorIs(t, err, context.Canceled)

	_, err = store.FindByUsername(context.Background(), "dave")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestSQLiteUserRepository(t *testing.T) {
	t.Parallel()

	runCredentialStoreSuite(t, func(t *testing.T) credentialStore {
		ctx := context.Background()
		db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "auth.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		require.NoError(t, database.Migrate(ctx, db, database.DialectSQLite))
		// Re-running is a no-op.
		require.NoError(t, database.Migrate(ctx, db, database.DialectSQLite))

		return NewSQLiteUserRepository(db)
	})
}

func TestRedisUserRepository(t *testing.T) {
	t.Parallel()

	runCredentialStoreSuite(t, func(t *testing.T) credentialStore {
		mini, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mini.Close)

		client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		return NewRedisUserRepository(client, fmt.Sprintf("test-%d", time.Now().UnixNano()))
	})
}

func TestRedisUserRepositoryKeyLayout(t *testing.T) {
	t.Parallel()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisUserRepository(client, "auth")
	require.NoError(t, store.Create(context.Background(), newUser("Erin")))

	require.True(t, mini.Exists("auth:user:erin"))
	require.Zero(t, mini.TTL("auth:user:erin"))

	mini.Set("auth:user:broken", "{not json")
	_, err = store.FindByUsername(context.Background(), "broken")
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrUserNotFound)
}

func TestRedisUserRepositoryUnavailable(t *testing.T) {
	t.Parallel()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mini.Close()

	store := NewRedisUserRepository(client, "auth")
	_, err = store.FindByUsername(context.Background(), "erin")
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrUserNotFound)
	require.Error(t, store.Health(context.Background()))
}
