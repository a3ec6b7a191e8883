package db

import (
	"context"
	"errors"
	"strings"

	"opsdesk/internal/domain/auth"
	"opsdesk/internal/platform/config"
)

// Seed creates the bootstrap administrator when SEED_ADMIN_EMAIL is set. It
// works against any auth store so the memory and firestore backends share it.
func Seed(ctx context.Context, users auth.StoreAPI, cfg config.Config) error {
	email := strings.TrimSpace(cfg.SeedAdminEmail)
	if email == "" {
		return nil
	}
	return ensureAdminUser(ctx, users, email, cfg.SeedAdminPassword)
}

func ensureAdminUser(ctx context.Context, users auth.StoreAPI, email, password string) error {
	if _, err := users.FindUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, auth.ErrUserNotFound) {
		return err
	}
	if password == "" {
		return errors.New("seed admin password is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = users.CreateUser(ctx, auth.User{
		Email:        email,
		PasswordHash: hash,
		RoleName:     auth.RoleAdmin,
		Status:       auth.UserStatusActive,
	})
	if errors.Is(err, auth.ErrUserExists) {
		return nil
	}
	return err
}
