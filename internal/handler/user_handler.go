package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/forgeline/agora/internal/middleware"
	"github.com/forgeline/agora/internal/service"
	"github.com/forgeline/agora/pkg/errcode"
	"github.com/forgeline/agora/pkg/response"
)

// UserHandler handles user profile requests
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetMe returns the caller's own profile
func (h *UserHandler) GetMe(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)

	userInfo, err := h.userService.GetUserInfo(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, userInfo)
}

// GetUserById returns another user's public profile
func (h *UserHandler) GetUserById(ctx context.Context, c *app.RequestContext) {
	userId, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userId <= 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	userInfo, err := h.userService.GetUserInfo(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, userInfo)
}
