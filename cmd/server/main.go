// Command server wires the access-control core of the API-management
// console: credential store, token service, session lifecycle,
// authorization gate, permission ledger, and the HTTP surface on top.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	catalogservice "apim/internal/catalog/service"
	catalogstore "apim/internal/catalog/store"
	"apim/internal/gate"
	identityservice "apim/internal/identity/service"
	identitystore "apim/internal/identity/store"
	permissionservice "apim/internal/permission/service"
	permissionstore "apim/internal/permission/store"
	"apim/internal/platform/config"
	"apim/internal/platform/httpserver"
	"apim/internal/platform/logger"
	"apim/internal/platform/metrics"
	"apim/internal/platform/postgres"
	platformredis "apim/internal/platform/redis"
	sessionservice "apim/internal/session/service"
	sessionstore "apim/internal/session/store"
	"apim/internal/token"
	httptransport "apim/internal/transport/http"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store backends: Postgres when configured, in-memory otherwise so
	// the server still comes up for local development.
	var (
		users       identitystore.Store   = identitystore.NewMemory()
		sessions    sessionstore.Store    = sessionstore.NewMemory()
		permissions permissionstore.Store = permissionstore.NewMemory()
		resources   catalogstore.Store    = catalogstore.NewMemory()
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		users = identitystore.NewPostgres(db)
		sessions = sessionstore.NewPostgres(db)
		permissions = permissionstore.NewPostgres(db)
		resources = catalogstore.NewPostgres(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
	}

	// Redis, when configured, takes over session storage only; it is the
	// hot path (every gated request reads the session).
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = sessionstore.NewRedis(redisClient.Client, cfg.RefreshTokenTTL)
		log.Info("session store backed by redis")
	}

	tokens, err := token.New(token.Config{
		SigningKey:     cfg.JWTSigningKey,
		AccessTTL:      cfg.AccessTokenTTL,
		RefreshTTL:     cfg.RefreshTokenTTL,
		RenewThreshold: cfg.RenewThreshold,
	})
	if err != nil {
		return err
	}

	m := metrics.New()

	identities := identityservice.New(users, log,
		identityservice.WithBcryptCost(cfg.BcryptCost),
		identityservice.WithCascades(sessions, permissions),
	)
	sessionSvc := sessionservice.New(identities, tokens, sessions, m, log)
	authGate := gate.New(tokens, identities, sessions, m, log)

	// The catalog cascades grant removal straight through the permission
	// store; going through the service would make the two services
	// mutually dependent.
	catalogSvc := catalogservice.New(resources, log,
		catalogservice.WithGrantCascade(permissions),
	)
	permissionSvc := permissionservice.New(permissions, identities, catalogSvc, m, log)

	cookies := httptransport.CookieConfig{
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}
	router := httptransport.NewRouter(httptransport.Handlers{
		Auth:        httptransport.NewAuthHandler(sessionSvc, identities, cookies),
		Permissions: httptransport.NewPermissionHandler(permissionSvc),
		Catalog:     httptransport.NewCatalogHandler(catalogSvc),
		Users:       httptransport.NewUserHandler(identities),
		Gate:        authGate,
		Cookies:     cookies,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
