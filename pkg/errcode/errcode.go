package errcode

import (
	"fmt"
	"net/http"
)

// Error represents a business error with a stable machine-readable code
// and the HTTP status it maps to.
type Error struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Msg    string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %s, msg: %s", e.Code, e.Msg)
}

// New creates a new error with status, code and message
func New(status int, code, msg string) *Error {
	return &Error{Status: status, Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Status: e.Status,
		Code:   e.Code,
		Msg:    fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// WithMsg returns a copy of the error with a more specific message
func (e *Error) WithMsg(msg string) *Error {
	return &Error{Status: e.Status, Code: e.Code, Msg: msg}
}

// Common errors
var (
	ErrInvalidParam   = New(http.StatusBadRequest, "validation_error", "invalid parameter")
	ErrUnauthorized   = New(http.StatusUnauthorized, "unauthenticated", "unauthenticated")
	ErrForbidden      = New(http.StatusForbidden, "forbidden", "forbidden")
	ErrNotFound       = New(http.StatusNotFound, "not_found", "not found")
	ErrInternalServer = New(http.StatusInternalServerError, "internal_error", "internal server error")
	ErrStoreFailure   = New(http.StatusInternalServerError, "store_failure", "storage temporarily unavailable")

	// Auth errors
	ErrTokenMissing  = New(http.StatusUnauthorized, "unauthenticated", "token missing")
	ErrTokenInvalid  = New(http.StatusUnauthorized, "unauthenticated", "token invalid")
	ErrLoginFailed   = New(http.StatusUnauthorized, "login_failed", "wrong username or password")
	ErrUserExists    = New(http.StatusConflict, "user_exists", "username already taken")
	ErrUserNotFound  = New(http.StatusNotFound, "not_found", "user not found")
	ErrTicketInvalid = New(http.StatusUnauthorized, "unauthenticated", "realtime ticket invalid or expired")

	// Conversation errors
	ErrSelfConversation = New(http.StatusBadRequest, "validation_error", "cannot start a conversation with yourself")
	ErrConvNotFound     = New(http.StatusNotFound, "not_found", "conversation not found")
	ErrNotParticipant   = New(http.StatusForbidden, "forbidden", "not a participant of this conversation")
	ErrEmptyBody        = New(http.StatusBadRequest, "validation_error", "message body must not be empty")
	ErrBodyTooLong      = New(http.StatusBadRequest, "validation_error", "message body too long")
)
