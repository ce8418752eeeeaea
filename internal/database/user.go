package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradestream/internal/store"

	"github.com/lib/pq"
)

// UserRepository stores users in PostgreSQL. It implements store.UserStore.
type UserRepository struct {
	db *DB

	findByUsername string
	exists         string
	insert         string
}

// NewUserRepository binds the repository to table, which is quoted as an
// identifier.
func NewUserRepository(db *DB, table string) *UserRepository {
	t := pq.QuoteIdentifier(table)
	return &UserRepository{
		db: db,
		findByUsername: `
		SELECT id, username, email, password_hash, COALESCE(full_name, ''), created_at
		FROM ` + t + ` WHERE username = $1 LIMIT 1`,
		exists: `SELECT EXISTS (SELECT 1 FROM ` + t + ` WHERE username = $1 OR email = $2)`,
		insert: `
		INSERT INTO ` + t + ` (id, username, email, password_hash, full_name, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
	}
}

// FindUserByUsername retrieves a user by username
func (r *UserRepository) FindUserByUsername(ctx context.Context, username string) (*store.User, error) {
	user := &store.User{}
	err := r.db.QueryRowContext(ctx, r.findByUsername, username).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UserExists checks if a user exists by username or email
func (r *UserRepository) UserExists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, r.exists, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// InsertUser creates a new user
func (r *UserRepository) InsertUser(ctx context.Context, u *store.User) (string, error) {
	_, err := r.db.ExecContext(ctx, r.insert,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return u.ID, nil
}

// HealthCheck pings the database.
func (r *UserRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
