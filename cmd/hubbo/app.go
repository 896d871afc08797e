package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bilitade/hubbo/internal/db"
	"github.com/bilitade/hubbo/internal/handlers"
	"github.com/bilitade/hubbo/internal/logger"
	"github.com/bilitade/hubbo/internal/repository"
	"github.com/bilitade/hubbo/internal/repository/postgres"
	"github.com/bilitade/hubbo/internal/service/auth"
	"github.com/bilitade/hubbo/internal/service/auth/tokenmanager"
	"github.com/bilitade/hubbo/internal/service/gate"
	"github.com/bilitade/hubbo/internal/service/ratelimit"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	storage repository.Storage
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:       c.SecretKey,
		AccessTTL:       c.AccessTTL,
		RefreshTTL:      c.RefreshTTL,
		AllowWeakSecret: c.Environment == logger.EnvDev,
	}, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	// Rate limit counters: shared redis windows when an address is
	// configured, exact in-process sliding windows otherwise
	var store ratelimit.Store
	if c.RedisAddr != "" {
		store = ratelimit.NewRedisStore(redis.NewClient(&redis.Options{Addr: c.RedisAddr}))
	} else {
		store = ratelimit.NewMemoryStore(ratelimit.WithSweepInterval(time.Minute))
	}
	limiter := ratelimit.New(store, map[string]ratelimit.Limit{
		gate.ClassLogin:   {PerMinute: c.LoginPerMinute, PerHour: c.LoginPerHour},
		gate.ClassRefresh: {PerMinute: c.RefreshPerMinute, PerHour: c.RefreshPerHour},
		gate.ClassGeneral: {PerMinute: c.GeneralPerMinute, PerHour: c.GeneralPerHour},
	})

	g, err := gate.New(tokenManager, storage.User(), limiter)
	if err != nil {
		return nil, fmt.Errorf("error while creating request gate. Err: %w", err)
	}

	mux := handlers.NewRouter(authService, storage.User(), g, l)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     l,
		storage:    storage,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go s.purgeExpiredTokens(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}

// purgeExpiredTokens removes refresh token records long past their expiry so
// the table does not grow without bound. Revocation never depends on it.
func (s *ServerApp) purgeExpiredTokens(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.storage.Refresh().DeleteExpired(ctx, time.Now())
			if err != nil {
				s.logger.Warn("purging expired refresh tokens failed", "error", err.Error())
				continue
			}
			if removed > 0 {
				s.logger.Info("purged expired refresh tokens", "removed", removed)
			}
		}
	}
}
