package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"

	"github.com/forgeline/agora/internal/config"
	"github.com/forgeline/agora/internal/gateway"
	"github.com/forgeline/agora/internal/handler"
	"github.com/forgeline/agora/internal/repository"
	"github.com/forgeline/agora/internal/router"
	"github.com/forgeline/agora/internal/service"
	"github.com/forgeline/agora/pkg/constant"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	// Initialize services
	authService := service.NewAuthService(repos.User, cfg, repos.Redis)
	userService := service.NewUserService(repos.User)
	convService := service.NewConversationService(repos)

	// Initialize realtime gateway, with the auth service consuming
	// handshake tickets
	wsServer := gateway.NewWsServer(cfg, repos.Redis, authService)

	// Wire push events from the conversation service into the gateway
	convService.SetPusher(wsServer)

	wsServer.Run(ctx)
	log.CtxInfo(ctx, "realtime gateway started")

	// Standalone realtime listener when ws_port differs from the HTTP port
	if cfg.Server.WSPort != cfg.Server.HTTPPort {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Server.WSPort)
			if err := wsServer.RunStandalone(ctx, addr); err != nil {
				log.CtxError(ctx, "standalone realtime listener error: %v", err)
			}
		}()
	}

	// Initialize handlers
	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Conversation: handler.NewConversationHandler(convService),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, handlers, wsServer)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")
	cancel()

	// Graceful shutdown
	if err := h.Shutdown(context.Background()); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
