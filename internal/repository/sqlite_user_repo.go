package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"go-token-auth/internal/model"
)

// SQLiteUserRepository stores credentials in an embedded SQLite database.
// Uniqueness is enforced on username_key, which holds normalizeUsername's
// result; SQLite's NOCASE only folds ASCII.
type SQLiteUserRepository struct {
	db *sql.DB
}

func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func (r *SQLiteUserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	var (
		u         model.User
		createdMs int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at_ms
		 FROM users WHERE username_key = ?`, normalizeUsername(username)).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &createdMs)

	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}
	u.CreatedAt = time.UnixMilli(createdMs).UTC()
	return u, nil
}

func (r *SQLiteUserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, username_key, password_hash, created_at_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, normalizeUsername(u.Username), u.PasswordHash, u.CreatedAt.UnixMilli())

	if isSQLiteUniqueViolation(err) {
		return model.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLiteUserRepository) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
