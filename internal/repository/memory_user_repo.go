package repository

import (
	"context"
	"sync"

	"go-token-auth/internal/model"
)

// MemoryUserRepository keeps credentials in process memory. Records are lost
// on restart; it backs tests and single-instance development setups.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: map[string]model.User{}}
}

func (r *MemoryUserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[normalizeUsername(username)]
	if !exists {
		return model.User{}, model.ErrUserNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, u model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := normalizeUsername(u.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[key]; exists {
		return model.ErrUsernameTaken
	}
	r.users[key] = u
	return nil
}

func (r *MemoryUserRepository) Health(ctx context.Context) error {
	return ctx.Err()
}
