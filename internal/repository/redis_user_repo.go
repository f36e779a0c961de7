package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"go-token-auth/internal/model"
)

// RedisUserRepository stores each record as JSON under
// "<prefix>:user:<normalized username>". SETNX makes registration a single
// atomic check-and-insert.
type RedisUserRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisUserRepository(client redis.UniversalClient, keyPrefix string) *RedisUserRepository {
	return &RedisUserRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisUserRepository) key(username string) string {
	key := "user:" + normalizeUsername(username)
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + ":" + key
}

func (r *RedisUserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	raw, err := r.client.Get(ctx, r.key(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}

	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return model.User{}, fmt.Errorf("decode user record: %w", err)
	}
	return u, nil
}

func (r *RedisUserRepository) Create(ctx context.Context, u model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.key(u.Username), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if !created {
		return model.ErrUsernameTaken
	}
	return nil
}

func (r *RedisUserRepository) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
