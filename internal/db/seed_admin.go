package db

import (
	"context"
	"errors"

	"github.com/geocoder89/idprint/internal/config"
	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/security"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, p user.CreateParams) (user.User, error)
}

// EnsureAdminUser creates the configured ADMIRAL account once. It is a
// no-op when no admin credentials are configured or the email exists.
func EnsureAdminUser(ctx context.Context, store AdminStore, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, err := store.GetByEmail(ctx, cfg.AdminEmail)

	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = store.Create(ctx, user.CreateParams{
		Email:        cfg.AdminEmail,
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		Role:         cfg.AdminRole,
	})
	if errors.Is(err, user.ErrEmailAlreadyUsed) {
		// another replica won the race
		return nil
	}

	return err
}
