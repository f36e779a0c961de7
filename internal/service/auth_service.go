package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-token-auth/internal/model"
)

// CredentialStore is the persistence the authenticator needs. Create must
// enforce username uniqueness atomically and report model.ErrUsernameTaken;
// FindByUsername reports model.ErrUserNotFound on a miss.
type CredentialStore interface {
	Create(ctx context.Context, user model.User) error
	FindByUsername(ctx context.Context, username string) (model.User, error)
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, hash string) bool
}

// AuthService registers users and checks login attempts. It holds no
// per-user state of its own.
type AuthService struct {
	store     CredentialStore
	hasher    passwordHasher
	dummyHash string
	now       func() time.Time
}

func NewAuthService(store CredentialStore, hasher passwordHasher) (*AuthService, error) {
	if store == nil || hasher == nil {
		return nil, errors.New("auth service requires a credential store and a password hasher")
	}

	// Unknown usernames are compared against this hash so that a miss costs
	// the same bcrypt work as a wrong password.
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AuthService{
		store:     store,
		hasher:    hasher,
		dummyHash: dummy,
		now:       time.Now,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, creds model.Credentials) (model.User, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := validateCredentials(creds); err != nil {
		return model.User{}, err
	}

	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		return model.User{}, err
	}

	user := model.User{
		ID:           uuid.NewString(),
		Username:     creds.Username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}

	if err := s.store.Create(ctx, user); err != nil {
		return model.User{}, err
	}

	return user, nil
}

// Login returns the stored record when the password matches. Unknown
// usernames and wrong passwords both fail with model.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, creds model.Credentials) (model.User, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		s.hasher.Verify(creds.Password, s.dummyHash)
		return model.User{}, model.ErrInvalidCredentials
	}

	user, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.Verify(creds.Password, s.dummyHash)
		return model.User{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}

	if !s.hasher.Verify(creds.Password, user.PasswordHash) {
		return model.User{}, model.ErrInvalidCredentials
	}

	return user, nil
}

// LookupAccount confirms that the subject of a validated token still exists.
func (s *AuthService) LookupAccount(ctx context.Context, username string) (model.Principal, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Principal{}, model.ErrAccountNotFound
	}
	if err != nil {
		return model.Principal{}, fmt.Errorf("look up account: %w", err)
	}

	return model.Principal{UserID: user.ID, Username: user.Username}, nil
}
