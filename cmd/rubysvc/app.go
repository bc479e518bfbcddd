package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/samkok24/char-chat-project-sub001/internal/db"
	"github.com/samkok24/char-chat-project-sub001/internal/handlers"
	"github.com/samkok24/char-chat-project-sub001/internal/logger"
	"github.com/samkok24/char-chat-project-sub001/internal/repository/postgres"
	"github.com/samkok24/char-chat-project-sub001/internal/rubycache"
	"github.com/samkok24/char-chat-project-sub001/internal/service/auth"
	"github.com/samkok24/char-chat-project-sub001/internal/service/point"
	"github.com/samkok24/char-chat-project-sub001/internal/service/reconciler"
	"github.com/samkok24/char-chat-project-sub001/internal/service/webhook"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	reconciler *reconciler.Reconciler
	logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if c.SecretKey == "" {
		return nil, errors.New("secret key must be set")
	}
	if c.WebhookSecret == "" {
		return nil, errors.New("webhook secret must be set")
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Connect to the balance cache
	cache, err := rubycache.New(ctx, c.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := auth.New(auth.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	pointService := point.NewService(storage, cache, logger)
	webhookService := webhook.NewService(storage, cache, logger)

	mux := handlers.NewRouter(
		pointService,
		webhookService,
		tokenManager,
		c.WebhookSecret,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		reconciler: reconciler.New(storage, logger),
		logger:     logger,
	}, nil
}

// Run starts the http server and the reconciler, closing both gracefully
// on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	reconcilerStopped := s.reconciler.Process(srvCtx)

	idleConnsClosed := make(chan struct{})
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

	// Listen and serve until context is cancelled; then close gracefully
	slog.Info("Starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-reconcilerStopped

	return err
}
