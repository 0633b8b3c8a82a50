package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/forgeline/agora/pkg/errcode"
)

// Body represents a standard success response
type Body struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// ErrorBody represents a standard error response
type ErrorBody struct {
	Err  string `json:"error"`
	Code string `json:"code"`
}

// Success sends a 200 success response
func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, Body{Data: data, Message: "success"})
}

// Created sends a 201 created response
func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, Body{Data: data, Message: "created"})
}

// Error sends an error response, mapping business errors to their status
func Error(ctx context.Context, c *app.RequestContext, err error) {
	if e, ok := err.(*errcode.Error); ok {
		ErrorWithCode(ctx, c, e)
		return
	}
	ErrorWithCode(ctx, c, errcode.ErrInternalServer)
}

// ErrorWithCode sends an error response with a specific error code
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	c.JSON(e.Status, ErrorBody{Err: e.Msg, Code: e.Code})
}
