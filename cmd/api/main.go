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

	"github.com/joho/godotenv"

	"github.com/hwpark/chatbot/backend/internal/auth"
	"github.com/hwpark/chatbot/backend/internal/config"
	"github.com/hwpark/chatbot/backend/internal/handler"
	"github.com/hwpark/chatbot/backend/internal/service/ai"
	adminservice "github.com/hwpark/chatbot/backend/internal/service/admin"
	chatservice "github.com/hwpark/chatbot/backend/internal/service/chat"
	feedbackservice "github.com/hwpark/chatbot/backend/internal/service/feedback"
	userservice "github.com/hwpark/chatbot/backend/internal/service/user"
	"github.com/hwpark/chatbot/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file loaded, using system environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if err := store.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	sessions := store.NewSessionStore(db)
	exchanges := store.NewExchangeStore(db)
	users := store.NewUserStore(db)
	feedbacks := store.NewFeedbackStore(db)

	tokens := auth.NewTokenProvider(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	upstream := ai.NewGeminiClient(cfg.AI, logger)

	policy := chatservice.NewExpirationPolicy(cfg.Chat.IdleWindow)
	manager := chatservice.NewManager(sessions, policy, cfg.Chat.SessionLockWait)
	coordinator := chatservice.NewCoordinator(manager, exchanges, upstream, logger)
	threads := chatservice.NewThreads(sessions, logger)

	router := handler.NewRouter(handler.Deps{
		Users:       users,
		Tokens:      tokens,
		UserSvc:     userservice.NewService(users, tokens, logger),
		Coordinator: coordinator,
		Threads:     threads,
		FeedbackSvc: feedbackservice.NewService(feedbacks, exchanges, sessions, logger),
		AdminSvc:    adminservice.NewService(users, exchanges, logger),
		Logger:      logger,
	})

	startServer(ctx, cfg.Server, router, logger)

	// Let in-flight streamed answers reach the database before exiting.
	coordinator.Drain()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("chatbot backend listening", "addr", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
