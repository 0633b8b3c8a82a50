package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/forgeline/agora/internal/middleware"
	"github.com/forgeline/agora/internal/service"
	"github.com/forgeline/agora/pkg/errcode"
	"github.com/forgeline/agora/pkg/response"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles user registration
func (h *AuthHandler) Register(ctx context.Context, c *app.RequestContext) {
	var req service.RegisterRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	userInfo, err := h.authService.Register(ctx, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, userInfo)
}

// Login handles user login
func (h *AuthHandler) Login(ctx context.Context, c *app.RequestContext) {
	var req service.LoginRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	resp, err := h.authService.Login(ctx, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, resp)
}

// IssueTicket issues a one-time realtime credential for the caller. The
// socket handshake presents this ticket so the session token stays out
// of URLs and proxy logs.
func (h *AuthHandler) IssueTicket(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)

	resp, err := h.authService.IssueTicket(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, resp)
}
