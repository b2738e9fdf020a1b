// Command migrate applies the schema and seeds the admiral account, for
// deploys that prepare the database before rolling out the API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/geocoder89/idprint/internal/config"
	"github.com/geocoder89/idprint/internal/db"
	"github.com/geocoder89/idprint/internal/observability"
	"github.com/geocoder89/idprint/internal/repo/postgres"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	if err := db.EnsureAdminUser(ctx, postgres.NewUsersRepo(pool, nil), cfg); err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	log.Info("database ready", "admin_seeded", cfg.AdminEmail != "")
}
