package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/shopadmin/internal/config"
	"github.com/geocoder89/shopadmin/internal/db"
	"github.com/geocoder89/shopadmin/internal/observability"
	"github.com/geocoder89/shopadmin/internal/repo/postgres"
	"github.com/geocoder89/shopadmin/internal/sweeper"
)

// The sweeper only has work when sessions live in Postgres; Redis expires keys
// itself and the memory store dies with the process.
func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if cfg.SessionBackend != config.SessionPostgres {
		log.Info("session backend needs no sweeping, exiting", "backend", cfg.SessionBackend)
		return
	}

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := postgres.NewSessionsRepo(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error("ensure session schema failed", "err", err)
		os.Exit(1)
	}

	s := sweeper.New(sweeper.Config{
		Interval: cfg.SweepInterval,
		Grace:    time.Hour,
	}, repo, log)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.SweeperPort),
		Handler:           s.HealthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("sweeper health server failed", "err", err)
		}
	}()

	log.Info("sweeper has started", "interval", cfg.SweepInterval.String())

	if err := s.Run(ctx); err != nil {
		log.Error("sweeper stopped with error", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	log.Info("sweeper shutdown complete")
}
