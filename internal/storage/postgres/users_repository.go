package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltgrid/server/internal/domain/users"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *UserRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *UserRepository) Create(ctx context.Context, user users.User) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO users (id, email, password_hash, display_name, role, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return users.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.scanUser(r.queryer().QueryRow(ctx, userSelect+` WHERE email = $1`, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.scanUser(r.queryer().QueryRow(ctx, userSelect+` WHERE id = $1`, id))
}

const userSelect = `
SELECT id, email, password_hash, display_name, role, created_at
  FROM users`

func (r *UserRepository) scanUser(row pgx.Row) (*users.User, error) {
	var user users.User
	if err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash,
		&user.DisplayName, &user.Role, &user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}
