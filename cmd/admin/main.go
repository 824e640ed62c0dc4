package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/geocoder89/shopadmin/internal/auth"
	"github.com/geocoder89/shopadmin/internal/backend"
	"github.com/geocoder89/shopadmin/internal/catalog"
	"github.com/geocoder89/shopadmin/internal/config"
	"github.com/geocoder89/shopadmin/internal/db"
	"github.com/geocoder89/shopadmin/internal/guard"
	httpx "github.com/geocoder89/shopadmin/internal/http"
	"github.com/geocoder89/shopadmin/internal/http/middlewares"
	"github.com/geocoder89/shopadmin/internal/lookup"
	"github.com/geocoder89/shopadmin/internal/notifications"
	"github.com/geocoder89/shopadmin/internal/observability"
	"github.com/geocoder89/shopadmin/internal/redisclient"
	"github.com/geocoder89/shopadmin/internal/repo/postgres"
	"github.com/geocoder89/shopadmin/internal/session"
	"github.com/geocoder89/shopadmin/internal/table"
)

const toastTTL = 10 * time.Minute

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if cfg.OTelEnabled {
		ctx, cancel := config.WithTimeout(5 * time.Second)
		shutdown, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: cfg.OTelServiceName,
			Endpoint:    cfg.OTelEndpoint,
			Env:         cfg.Env,
			SampleRatio: cfg.OTelSampleRatio,
		})
		cancel()
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdown(ctx)
			}()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	persister, inbox, cleanup, err := storage(cfg, log)
	if err != nil {
		log.Error("session storage unavailable", "backend", cfg.SessionBackend, "err", err)
		os.Exit(1)
	}
	defer cleanup()

	sessions := session.NewService(session.Instrument(persister, prom))

	logNotifier := notifications.NewLogNotifier(log)
	flash := notifications.NewFlashNotifier(inbox, logNotifier)
	notifier := notifications.NewProtectedNotifier(flash, logNotifier, notifications.ProtectedNotifierConfig{})

	client := backend.New(
		backend.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout},
		backend.WithNotifier(notifier),
		backend.WithMetrics(prom),
		backend.WithLogger(log),
	)
	cat := catalog.New(catalog.NewGateway(client, cfg.OptionsCacheTTL))

	authz, err := authorizer(cfg)
	if err != nil {
		log.Error("authorization policy invalid", "err", err)
		os.Exit(1)
	}

	tokens := auth.NewManager(cfg.SessionSecret, cfg.SessionTTL)

	// set up routers
	router := httpx.NewRouter(httpx.Deps{
		Env:          cfg.Env,
		Logger:       log,
		Catalog:      cat,
		Sessions:     middlewares.NewSessions(sessions, tokens, cfg.Env == "prod", log),
		Notifier:     notifier,
		Toasts:       flash,
		Confirms:     table.NewConfirmations(cfg.ConfirmTTL),
		Debouncer:    lookup.NewDebouncer(lookup.DefaultDelay),
		Authorizer:   authz,
		AdminRoles:   guard.RoleSet(cfg.AdminRoles),
		Prom:         prom,
		Gatherer:     reg,
		Ping:         sessions.Ping,
		MaxBodyBytes: cfg.MaxBodyBytes,
		LoginLimiter: middlewares.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow),
		Tracing:      cfg.OTelEnabled,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// exports of every record can take longer than a page
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "session_backend", cfg.SessionBackend)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// storage picks the session persister and the toast inbox for the configured backend.
func storage(cfg config.Config, log *slog.Logger) (session.Persister, notifications.Inbox, func(), error) {
	ctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	switch cfg.SessionBackend {
	case config.SessionRedis:
		rc := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		cleanup := func() { _ = rc.Close() }
		return session.NewRedisPersister(rc.Raw(), cfg.SessionTTL), notifications.NewRedisInbox(rc.Raw(), toastTTL), cleanup, nil

	case config.SessionPostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := postgres.NewSessionsRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("ensure session schema: %w", err)
		}
		return repo, notifications.NewMemoryInbox(toastTTL), pool.Close, nil

	default:
		if cfg.SessionBackend != config.SessionMemory {
			log.Warn("unknown session backend, using memory", "backend", cfg.SessionBackend)
		}
		return session.NewMemoryPersister(), notifications.NewMemoryInbox(toastTTL), func() {}, nil
	}
}

func authorizer(cfg config.Config) (guard.Authorizer, error) {
	if cfg.PolicyMode == config.PolicyCasbin {
		return guard.NewCasbinAuthorizer(guard.DefaultRules)
	}
	return guard.RoleSet(cfg.AdminRoles), nil
}

