// Package server initializes and runs the tallysync server: storage,
// session registry, HTTP/WebSocket endpoints and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/iudanet/tallysync/internal/server/auth"
	"github.com/iudanet/tallysync/internal/server/config"
	"github.com/iudanet/tallysync/internal/server/handlers"
	"github.com/iudanet/tallysync/internal/server/middleware"
	"github.com/iudanet/tallysync/internal/server/registry"
	"github.com/iudanet/tallysync/internal/server/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// App связывает компоненты сервера
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	storage *sqlite.Storage
	server  *http.Server
	version string
}

// NewApp собирает приложение из конфигурации
func NewApp(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	logger := newLogger(cfg.LogLevel)

	store, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	verifier := auth.NewVerifier([]byte(cfg.SecretKey), cfg.TokenTTL)
	reg := registry.New(logger, verifier, store, store)

	authHandler := handlers.NewAuthHandler(logger, store, verifier, cfg.TrialPeriod)
	adminHandler := handlers.NewAdminHandler(logger, store, store, reg)
	paymentHandler := handlers.NewPaymentHandler(logger, store, reg)
	healthHandler := handlers.NewHealthHandler(logger, store, version)
	wsHandler := handlers.NewWSHandler(logger, reg)

	requireAuth := middleware.AuthMiddleware(logger, verifier)
	// Защита register/login от перебора
	loginLimit := middleware.RateLimitMiddleware(10, time.Minute, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/auth/register", loginLimit(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/v1/auth/login", loginLimit(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.Handle)
	mux.Handle("GET /api/v1/admin/accounts", requireAuth(http.HandlerFunc(adminHandler.ListAccounts)))
	mux.Handle("POST /api/v1/admin/subscription", requireAuth(http.HandlerFunc(adminHandler.UpdateSubscription)))
	mux.Handle("POST /api/v1/admin/blacklist", requireAuth(http.HandlerFunc(adminHandler.ToggleBlacklist)))
	mux.Handle("POST /api/v1/admin/delete", requireAuth(http.HandlerFunc(adminHandler.DeleteAccount)))
	mux.HandleFunc("POST /api/v1/payment/callback", paymentHandler.Callback)

	// WebSocket-эндпоинт не оборачивается логирующим writer:
	// upgrade требует http.Hijacker
	var handler http.Handler = mux
	handler = middleware.LoggingWithSkip(logger, []string{"/api/v1/ws", "/api/v1/health"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	return &App{
		cfg:    cfg,
		logger: logger,
		storage: store,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		version: version,
	}, nil
}

// Run запускает HTTP сервер и блокируется до отмены контекста
// или фатальной ошибки сервера
func (app *App) Run(ctx context.Context) error {
	errC := make(chan error, 1)

	go func() {
		app.logger.Info("server listening", slog.String("addr", app.cfg.Addr), slog.String("version", app.version))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	select {
	case err := <-errC:
		app.closeStorage()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := app.server.Shutdown(shutdownCtx)
	app.closeStorage()
	if err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

func (app *App) closeStorage() {
	if err := app.storage.Close(); err != nil {
		app.logger.Error("failed to close storage", slog.Any("error", err))
	}
}

// newLogger создает JSON-логгер с заданным уровнем
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
