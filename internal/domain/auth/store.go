package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (User, error) {
	var out User
	var staffID *string
	err := s.DB.QueryRow(ctx, `
    SELECT id, email, password_hash, role, staff_id, status, created_at
    FROM users
    WHERE lower(email) = lower($1)
  `, strings.TrimSpace(email)).Scan(&out.ID, &out.Email, &out.PasswordHash, &out.RoleName, &staffID, &out.Status, &out.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	if staffID != nil {
		out.StaffID = *staffID
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user User) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, role, staff_id, status)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, strings.TrimSpace(user.Email), user.PasswordHash, user.RoleName, nullIfEmpty(user.StaffID), user.Status).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return "", ErrUserExists
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
