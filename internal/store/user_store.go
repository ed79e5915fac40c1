package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jjenkins/billwatch/internal/model"
)

// UserStore handles database operations for user accounts
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a user. A taken email returns ErrAlreadyExists.
func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (email, hashed_password, full_name, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		strings.ToLower(u.Email),
		u.HashedPassword,
		u.FullName,
		u.IsActive,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.Email, translateError(err))
	}

	return nil
}

// GetByEmail retrieves a user by email. Returns nil, nil when absent.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, hashed_password, full_name, is_active, created_at
		FROM users
		WHERE email = $1
	`

	var u model.User
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(
		&u.ID,
		&u.Email,
		&u.HashedPassword,
		&u.FullName,
		&u.IsActive,
		&u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", email, err)
	}

	return &u, nil
}
