package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lifelane/lifelane/internal/auth"
	"github.com/lifelane/lifelane/internal/model"
)

// uniqueViolation is the Postgres error code raised by the users.email
// unique constraint.
const uniqueViolation = "23505"

// Users is the pgx-backed auth.Registry.
type Users struct {
	pool *pgxpool.Pool
}

// NewUsers constructs a Users registry.
func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

// CreateUser inserts a new account, mapping the unique-email violation to
// auth.ErrEmailTaken.
func (u *Users) CreateUser(ctx context.Context, user *model.User) error {
	_, err := u.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, is_admin, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Admin, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByEmail looks up an account by email.
func (u *Users) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	row := u.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, is_admin, created_at FROM users WHERE email=$1
	`, email)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Admin, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

// SetAdmin flips the admin flag on an existing account.
func (u *Users) SetAdmin(ctx context.Context, email string, admin bool) error {
	tag, err := u.pool.Exec(ctx, `UPDATE users SET is_admin=$1 WHERE email=$2`, admin, email)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}
