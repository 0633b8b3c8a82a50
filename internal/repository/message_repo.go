package repository

import (
	"context"

	"github.com/forgeline/agora/internal/entity"
	"gorm.io/gorm"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create creates a new message inside a transaction
func (r *MessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	if msg.CreatedAt == 0 {
		msg.CreatedAt = entity.NowUnixMilli()
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// Count counts messages in a conversation
func (r *MessageRepo) Count(ctx context.Context, conversationId int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ?", conversationId).
		Count(&count).Error
	return count, err
}

// ListPage returns one page of a conversation's history. Paging walks the
// history newest-first so page 1 is always the latest messages; the page is
// then reversed so callers receive oldest-to-newest order.
func (r *MessageRepo) ListPage(ctx context.Context, conversationId int64, page, pageSize int) ([]*entity.Message, error) {
	if page < 1 {
		page = 1
	}

	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse to ascending order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
