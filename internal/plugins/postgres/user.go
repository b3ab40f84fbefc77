package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
)

/*
	CREATE TABLE users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		profile_image TEXT NOT NULL DEFAULT '',
		push_token    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);
*/

type UserRepo struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	exec := GetExecutor(ctx, r.db)
	return exec.QueryRowContext(ctx, `
        INSERT INTO users (id, username, email, password_hash, profile_image, push_token)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at
    `, u.ID, u.Username, u.Email, u.PasswordHash, u.ProfileImage, u.PushToken).Scan(&u.CreatedAt)
}

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, email)
}

func (r *UserRepo) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	exec := GetExecutor(ctx, r.db)
	u := &domain.User{}
	err := exec.QueryRowContext(ctx, `
        SELECT id, username, email, password_hash, profile_image, push_token, created_at
        FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfileImage, &u.PushToken, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) SearchUsers(ctx context.Context, query, excludeUserID string) ([]domain.User, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
        SELECT id, username, email, password_hash, profile_image, push_token, created_at
        FROM users
        WHERE (username ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
          AND id <> $2
        ORDER BY username
        LIMIT 20
    `, query, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.ProfileImage, &u.PushToken, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) UpdatePushToken(ctx context.Context, userID, token string) error {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `UPDATE users SET push_token = $2 WHERE id = $1`, userID, token)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
