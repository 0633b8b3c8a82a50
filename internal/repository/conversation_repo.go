package repository

import (
	"context"
	"errors"

	"github.com/forgeline/agora/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetById gets conversation by Id, nil if absent
func (r *ConversationRepo) GetById(ctx context.Context, id int64) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetByPairKeyForUpdate gets conversation by pair key with a row lock,
// serializing concurrent get-or-create attempts for the same pair within
// the surrounding transaction.
func (r *ConversationRepo) GetByPairKeyForUpdate(ctx context.Context, tx *gorm.DB, pairKey string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pair_key = ?", pairKey).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// CreateWithParticipants creates a conversation and both participant rows
// in one shot. Must run inside a transaction.
func (r *ConversationRepo) CreateWithParticipants(ctx context.Context, tx *gorm.DB, conv *entity.Conversation, userA, userB int64) error {
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	if err := tx.WithContext(ctx).Create(conv).Error; err != nil {
		return err
	}

	participants := []*entity.Participant{
		{ConversationId: conv.Id, UserId: userA},
		{ConversationId: conv.Id, UserId: userB},
	}
	return tx.WithContext(ctx).Create(participants).Error
}

// GetParticipant gets a user's participant row, nil if absent
func (r *ConversationRepo) GetParticipant(ctx context.Context, conversationId, userId int64) (*entity.Participant, error) {
	var p entity.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Touch bumps the conversation's updated_at inside a transaction
func (r *ConversationRepo) Touch(ctx context.Context, tx *gorm.DB, conversationId, at int64) error {
	return tx.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", conversationId).
		Update("updated_at", at).Error
}

// AdvanceLastRead sets a participant's read cursor. Callers only ever pass
// the current time, so the cursor never regresses.
func (r *ConversationRepo) AdvanceLastRead(ctx context.Context, tx *gorm.DB, conversationId, userId, at int64) error {
	return tx.WithContext(ctx).
		Model(&entity.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Update("last_read_at", at).Error
}

// ListOverviews returns the caller's conversation listing: peer profile,
// latest message, own read cursor and unread count. A missing read cursor
// counts as the epoch, and the unread comparison is strictly greater-than,
// matching the mark-read semantics.
func (r *ConversationRepo) ListOverviews(ctx context.Context, userId int64) ([]*entity.ConversationOverview, error) {
	var results []*entity.ConversationOverview

	err := r.db.WithContext(ctx).
		Table("conversations c").
		Select(`
			c.id as conversation_id,
			c.updated_at,
			u.id as peer_id,
			u.username as peer_username,
			u.avatar as peer_avatar,
			me.last_read_at,
			(SELECT m.body FROM messages m WHERE m.conversation_id = c.id
				ORDER BY m.created_at DESC, m.id DESC LIMIT 1) as last_message_body,
			(SELECT m.created_at FROM messages m WHERE m.conversation_id = c.id
				ORDER BY m.created_at DESC, m.id DESC LIMIT 1) as last_message_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id
				AND m.sender_id <> me.user_id
				AND m.created_at > COALESCE(me.last_read_at, 0)) as unread_count
		`).
		Joins("JOIN conversation_participants me ON me.conversation_id = c.id AND me.user_id = ?", userId).
		Joins("JOIN conversation_participants peer ON peer.conversation_id = c.id AND peer.user_id <> ?", userId).
		Joins("JOIN users u ON u.id = peer.user_id").
		Order("c.updated_at DESC, c.id DESC").
		Scan(&results).Error

	if err != nil {
		return nil, err
	}
	return results, nil
}
