package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-admin/assistant/internal/config"
	"github.com/zhouzirui/z-admin/assistant/internal/handler"
	"github.com/zhouzirui/z-admin/assistant/internal/observability"
	"github.com/zhouzirui/z-admin/assistant/internal/service/ai"
	"github.com/zhouzirui/z-admin/assistant/internal/service/chat"
	"github.com/zhouzirui/z-admin/assistant/internal/service/reply"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(observability.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using process environment", zap.Error(envErr))
	}

	chatService := chat.NewService()
	replyOpts := []reply.Option{reply.WithLogger(logger)}

	llmEnabled := false
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, logger.Named("ai"))
		if err != nil {
			logger.Warn("AI service unavailable, continuing with rule based replies", zap.Error(err))
		} else {
			replyOpts = append(replyOpts, reply.WithGenerator(aiService))
			llmEnabled = true
			logger.Info("AI service initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("ark credentials not configured, using rule based replies")
	}

	router := handler.NewRouter(handler.Deps{
		Chat:       chatService,
		Reply:      reply.NewService(chatService, replyOpts...),
		Auth:       cfg.Auth,
		Logger:     logger,
		LLMEnabled: llmEnabled,
	})

	startServer(ctx, logger, cfg.Server, router)
}

func startServer(ctx context.Context, logger *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("assistant chat service listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
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
