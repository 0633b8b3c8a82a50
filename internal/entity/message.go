package entity

import "github.com/forgeline/agora/pkg/errcode"

// Message represents a direct message. Messages are immutable and
// append-only; ordering within a conversation is (created_at, id).
type Message struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId int64  `json:"conversation_id" gorm:"column:conversation_id;index:idx_conv_created,priority:1"`
	SenderId       int64  `json:"sender_id" gorm:"column:sender_id"`
	Body           string `json:"body" gorm:"column:body;size:2000"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at;index:idx_conv_created,priority:2"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// ValidateBody checks the message body constraints
func ValidateBody(body string, maxLen int) error {
	if body == "" {
		return errcode.ErrEmptyBody
	}
	if len(body) > maxLen {
		return errcode.ErrBodyTooLong
	}
	return nil
}

// PageMeta is pagination metadata for message history
type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}
