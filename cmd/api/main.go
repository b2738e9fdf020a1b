package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/idprint/internal/auth"
	"github.com/geocoder89/idprint/internal/config"
	"github.com/geocoder89/idprint/internal/db"
	"github.com/geocoder89/idprint/internal/extractor"
	httpx "github.com/geocoder89/idprint/internal/http"
	"github.com/geocoder89/idprint/internal/http/handlers"
	"github.com/geocoder89/idprint/internal/lease"
	"github.com/geocoder89/idprint/internal/metering"
	"github.com/geocoder89/idprint/internal/observability"
	"github.com/geocoder89/idprint/internal/repo/memory"
	"github.com/geocoder89/idprint/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// store bundles what the router and service need from persistence.
type store interface {
	metering.Store
	handlers.UserStore
}

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	checks := map[string]handlers.Check{}

	var (
		users    store
		sessions handlers.RefreshTokenStore
	)

	pool, err := db.NewPool(ctx, cfg.DBURL)
	switch {
	case err == nil:
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			log.Error("migration failed", "err", err)
			os.Exit(1)
		}

		users = postgres.NewUsersRepo(pool, prom)
		sessions = postgres.NewRefreshTokensRepo(pool, prom)
		checks["postgres"] = pool.Ping

	case cfg.Env == "dev":
		log.Warn("postgres unavailable, using in-memory store", "err", err)
		users = memory.NewUsersRepo()
		sessions = memory.NewRefreshTokensRepo()

	default:
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	if err := db.EnsureAdminUser(ctx, users, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	var chargeLease lease.Locker = lease.NewLocal()
	if cfg.RedisAddr != "" {
		rdb := lease.DialRedis(lease.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		redisLease := lease.NewRedis(rdb, cfg.ChargeLeaseTTL, log)
		if err := redisLease.Ping(ctx); err != nil {
			log.Warn("redis ping failed at boot", "err", err)
		}
		chargeLease = redisLease
		checks["redis"] = redisLease.Ping
	}

	client := extractor.NewClient(extractor.ClientConfig{
		PDFURL:         cfg.ExtractorPDFURL,
		ScreenshotsURL: cfg.ExtractorScreenshotsURL,
		Token:          cfg.ExtractorToken,
		Timeout:        cfg.ExtractorTimeout,
	}, prom)

	protected := extractor.NewProtected(client, extractor.ProtectedConfig{
		Timeout:          cfg.ExtractorTimeout + 2*time.Second,
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
	}, prom)

	svc := metering.NewService(users, protected,
		metering.WithLease(chargeLease),
		metering.WithProm(prom),
		metering.WithLogger(log),
	)

	router := httpx.NewRouter(httpx.Deps{
		Log:      log,
		Cfg:      cfg,
		JWT:      auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL()),
		Users:    users,
		Sessions: sessions,
		Points:   svc,
		Checks:   checks,
		Prom:     prom,
		Gatherer: reg,
	})

	// uploads plus a full extractor round trip must fit in the write timeout
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.ExtractorTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(cfg.ExtractorTimeout + 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}
