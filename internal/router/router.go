package router

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"

	"github.com/forgeline/agora/internal/config"
	"github.com/forgeline/agora/internal/gateway"
	"github.com/forgeline/agora/internal/handler"
	"github.com/forgeline/agora/internal/middleware"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Conversation *handler.ConversationHandler
}

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, handlers *Handlers, wsServer *gateway.WsServer) {
	cfg := config.GlobalConfig

	h.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth routes
	authGroup := h.Group("/auth")
	{
		authGroup.POST("/register", handlers.Auth.Register)
		authGroup.POST("/login", handlers.Auth.Login)
		authGroup.POST("/ws-ticket", middleware.JWTAuth(), handlers.Auth.IssueTicket)
	}

	// User routes (auth required)
	userGroup := h.Group("/users", middleware.JWTAuth())
	{
		userGroup.GET("/me", handlers.User.GetMe)
		userGroup.GET("/:user_id", handlers.User.GetUserById)
	}

	// Conversation routes (auth required)
	convGroup := h.Group("/conversations", middleware.JWTAuth())
	{
		convGroup.POST("", handlers.Conversation.CreateConversation)
		convGroup.GET("", handlers.Conversation.ListConversations)
		convGroup.GET("/:conversation_id/messages", handlers.Conversation.ListMessages)
		convGroup.POST("/:conversation_id/messages", handlers.Conversation.SendMessage)
		convGroup.POST("/:conversation_id/read", handlers.Conversation.MarkRead)
	}

	// Realtime endpoint on the shared port. When ws_port differs, the
	// standalone listener in cmd/server serves this path instead.
	allowedOrigins := cfg.Server.AllowedOrigins
	upgrader := &websocket.HertzUpgrader{
		CheckOrigin: func(ctx *app.RequestContext) bool {
			return checkOrigin(ctx, allowedOrigins)
		},
	}

	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		wsServer.HandleHertzConnection(ctx, c, upgrader)
	})
}

// checkOrigin validates the Origin header against allowed origins
func checkOrigin(ctx *app.RequestContext, allowedOrigins []string) bool {
	origin := string(ctx.Request.Header.Peek("Origin"))

	// No origin header means same-origin or a non-browser client
	if origin == "" {
		return true
	}

	if len(allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}

	return false
}
