package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/forgeline/agora/internal/entity"
	"github.com/forgeline/agora/internal/middleware"
	"github.com/forgeline/agora/internal/service"
	"github.com/forgeline/agora/pkg/errcode"
	"github.com/forgeline/agora/pkg/response"
)

// ConversationHandler handles conversation and message requests
type ConversationHandler struct {
	convService *service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

// CreateConversationRequest opens (or finds) a conversation with a peer
type CreateConversationRequest struct {
	UserId int64 `json:"user_id"`
}

// SendMessageRequest carries one outgoing message body
type SendMessageRequest struct {
	Body string `json:"body"`
}

// MessagePage is a paged slice of conversation history
type MessagePage struct {
	Messages []*entity.Message `json:"messages"`
	Meta     *entity.PageMeta  `json:"meta"`
}

// CreateConversation finds or creates the conversation between the caller
// and the requested peer. A fresh conversation answers 201, an existing
// one 200, so clients can tell the two apart.
func (h *ConversationHandler) CreateConversation(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)

	var req CreateConversationRequest
	if err := c.BindAndValidate(&req); err != nil || req.UserId <= 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	result, err := h.convService.GetOrCreateConversation(ctx, userId, req.UserId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	if result.Created {
		response.Created(ctx, c, result)
		return
	}
	response.Success(ctx, c, result)
}

// ListConversations returns the caller's conversation overviews
func (h *ConversationHandler) ListConversations(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)

	overviews, err := h.convService.ListConversations(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, overviews)
}

// ListMessages returns one page of conversation history
func (h *ConversationHandler) ListMessages(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)

	conversationId, ok := paramConversationId(c)
	if !ok {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	messages, meta, err := h.convService.ListMessages(ctx, conversationId, userId, page, pageSize)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, &MessagePage{Messages: messages, Meta: meta})
}

// SendMessage persists a message in the conversation and pushes it to
// both participants' live connections
func (h *ConversationHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)

	conversationId, ok := paramConversationId(c)
	if !ok {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	var req SendMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.convService.SendMessage(ctx, conversationId, userId, req.Body)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, msg)
}

// MarkRead sets the caller's read cursor for the conversation to now
func (h *ConversationHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)

	conversationId, ok := paramConversationId(c)
	if !ok {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.convService.MarkRead(ctx, conversationId, userId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// paramConversationId parses the :conversation_id path parameter
func paramConversationId(c *app.RequestContext) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
