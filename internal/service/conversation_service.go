package service

import (
	"context"

	"github.com/forgeline/agora/internal/entity"
	"github.com/forgeline/agora/internal/repository"
	"github.com/forgeline/agora/pkg/constant"
	"github.com/forgeline/agora/pkg/errcode"
	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"
)

// EventPusher delivers fire-and-forget push events into the private rooms
// of the given users. Delivery is best-effort: users without a live
// connection simply never see the event and reconcile over HTTP.
type EventPusher interface {
	PublishToUsers(event string, payload interface{}, userIds ...int64)
}

// EventNewMessage is pushed to both participants after a message commits
const EventNewMessage = "dm:new"

// ConversationService handles conversation and message business logic
type ConversationService struct {
	convRepo *repository.ConversationRepo
	msgRepo  *repository.MessageRepo
	userRepo *repository.UserRepo
	repos    *repository.Repositories
	pusher   EventPusher
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories) *ConversationService {
	return &ConversationService{
		convRepo: repos.Conversation,
		msgRepo:  repos.Message,
		userRepo: repos.User,
		repos:    repos,
	}
}

// SetPusher sets the event pusher
func (s *ConversationService) SetPusher(pusher EventPusher) {
	s.pusher = pusher
}

// CreateConversationResult is the outcome of a get-or-create call
type CreateConversationResult struct {
	ConversationId int64 `json:"conversation_id"`
	Created        bool  `json:"created"`
}

// GetOrCreateConversation returns the conversation between the caller and
// peer, creating it atomically when absent. The pair-key row lock serializes
// concurrent attempts for the same pair; the unique index on pair_key
// backstops races between separate transactions.
func (s *ConversationService) GetOrCreateConversation(ctx context.Context, userId, peerId int64) (*CreateConversationResult, error) {
	if userId == peerId {
		return nil, errcode.ErrSelfConversation
	}

	peer, err := s.userRepo.GetById(ctx, peerId)
	if err != nil {
		log.CtxError(ctx, "get peer failed: peer_id=%d, error=%v", peerId, err)
		return nil, errcode.ErrStoreFailure
	}
	if peer == nil {
		return nil, errcode.ErrUserNotFound
	}

	pairKey := entity.GenPairKey(userId, peerId)
	result := &CreateConversationResult{}

	getOrCreate := func(tx *gorm.DB) error {
		existing, err := s.convRepo.GetByPairKeyForUpdate(ctx, tx, pairKey)
		if err != nil {
			return err
		}
		if existing != nil {
			result.ConversationId = existing.Id
			result.Created = false
			return nil
		}

		conv := &entity.Conversation{PairKey: pairKey}
		if err := s.convRepo.CreateWithParticipants(ctx, tx, conv, userId, peerId); err != nil {
			return err
		}

		result.ConversationId = conv.Id
		result.Created = true
		return nil
	}

	err = s.repos.Transaction(ctx, getOrCreate)
	if err != nil {
		// When no row exists yet, two transactions can both pass the locked
		// lookup (gap locks do not conflict) and both insert; the unique
		// index aborts one with a duplicate-key or deadlock error. Retry
		// once: the locked lookup now blocks until the winner commits and
		// returns the winner's row, so the loser gets the same id instead
		// of a surfaced error.
		log.CtxWarn(ctx, "get or create conversation retrying: user_id=%d, peer_id=%d, error=%v", userId, peerId, err)
		if err = s.repos.Transaction(ctx, getOrCreate); err != nil {
			log.CtxError(ctx, "get or create conversation failed: user_id=%d, peer_id=%d, error=%v", userId, peerId, err)
			return nil, errcode.ErrStoreFailure
		}
	}

	if result.Created {
		log.CtxInfo(ctx, "conversation created: conversation_id=%d, pair=%s", result.ConversationId, pairKey)
	}
	return result, nil
}

// ListConversations returns the caller's conversation overviews, most
// recently active first.
func (s *ConversationService) ListConversations(ctx context.Context, userId int64) ([]*entity.ConversationOverview, error) {
	overviews, err := s.convRepo.ListOverviews(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%d, error=%v", userId, err)
		return nil, errcode.ErrStoreFailure
	}
	return overviews, nil
}

// ListMessages returns one page of conversation history in oldest-to-newest
// order plus pagination metadata. The page size is clamped server-side.
func (s *ConversationService) ListMessages(ctx context.Context, conversationId, userId int64, page, pageSize int) ([]*entity.Message, *entity.PageMeta, error) {
	if page < 1 {
		page = 1
	}
	pageSize = clampPageSize(pageSize)

	if err := s.requireParticipant(ctx, conversationId, userId); err != nil {
		return nil, nil, err
	}

	total, err := s.msgRepo.Count(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "count messages failed: conversation_id=%d, error=%v", conversationId, err)
		return nil, nil, errcode.ErrStoreFailure
	}

	messages, err := s.msgRepo.ListPage(ctx, conversationId, page, pageSize)
	if err != nil {
		log.CtxError(ctx, "list messages failed: conversation_id=%d, error=%v", conversationId, err)
		return nil, nil, errcode.ErrStoreFailure
	}

	meta := &entity.PageMeta{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages(total, pageSize),
	}
	return messages, meta, nil
}

// SendMessage persists a message and, after the transaction commits, pushes
// it into both participants' private rooms. The sender's own read cursor
// advances with the message, so users are always caught up on what they
// themselves sent.
func (s *ConversationService) SendMessage(ctx context.Context, conversationId, senderId int64, body string) (*entity.Message, error) {
	if err := entity.ValidateBody(body, constant.MaxMessageBodyLength); err != nil {
		return nil, err
	}

	if err := s.requireParticipant(ctx, conversationId, senderId); err != nil {
		return nil, err
	}

	peerId, err := s.peerOf(ctx, conversationId, senderId)
	if err != nil {
		return nil, err
	}

	now := entity.NowUnixMilli()
	msg := &entity.Message{
		ConversationId: conversationId,
		SenderId:       senderId,
		Body:           body,
		CreatedAt:      now,
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.msgRepo.Create(ctx, tx, msg); err != nil {
			return err
		}
		if err := s.convRepo.Touch(ctx, tx, conversationId, now); err != nil {
			return err
		}
		return s.convRepo.AdvanceLastRead(ctx, tx, conversationId, senderId, now)
	})
	if err != nil {
		log.CtxError(ctx, "send message failed: conversation_id=%d, sender_id=%d, error=%v", conversationId, senderId, err)
		return nil, errcode.ErrStoreFailure
	}

	// Push only after the transaction commits, so a pushed message is
	// always retrievable from the durable store. The sender's room is
	// included so their other open tabs update without a refetch.
	if s.pusher != nil {
		s.pusher.PublishToUsers(EventNewMessage, msg, senderId, peerId)
	}

	log.CtxInfo(ctx, "message sent: conversation_id=%d, sender_id=%d, message_id=%d", conversationId, senderId, msg.Id)
	return msg, nil
}

// MarkRead sets the caller's read cursor to now. Time only advances, so the
// cursor is monotonic without a comparison against the stored value.
func (s *ConversationService) MarkRead(ctx context.Context, conversationId, userId int64) error {
	participant, err := s.convRepo.GetParticipant(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: conversation_id=%d, user_id=%d, error=%v", conversationId, userId, err)
		return errcode.ErrStoreFailure
	}
	if participant == nil {
		return errcode.ErrConvNotFound
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		return s.convRepo.AdvanceLastRead(ctx, tx, conversationId, userId, entity.NowUnixMilli())
	})
	if err != nil {
		log.CtxError(ctx, "mark read failed: conversation_id=%d, user_id=%d, error=%v", conversationId, userId, err)
		return errcode.ErrStoreFailure
	}
	return nil
}

// requireParticipant verifies the conversation exists and the user belongs
// to it: missing conversation is not_found, a stranger is forbidden.
func (s *ConversationService) requireParticipant(ctx context.Context, conversationId, userId int64) error {
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: conversation_id=%d, error=%v", conversationId, err)
		return errcode.ErrStoreFailure
	}
	if conv == nil {
		return errcode.ErrConvNotFound
	}

	participant, err := s.convRepo.GetParticipant(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: conversation_id=%d, user_id=%d, error=%v", conversationId, userId, err)
		return errcode.ErrStoreFailure
	}
	if participant == nil {
		return errcode.ErrNotParticipant
	}
	return nil
}

// peerOf returns the other participant of a two-party conversation
func (s *ConversationService) peerOf(ctx context.Context, conversationId, userId int64) (int64, error) {
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil || conv == nil {
		return 0, errcode.ErrConvNotFound
	}
	a, b, ok := entity.ParsePairKey(conv.PairKey)
	if !ok {
		return 0, errcode.ErrInternalServer
	}
	if a == userId {
		return b, nil
	}
	return a, nil
}

func clampPageSize(pageSize int) int {
	if pageSize <= 0 {
		return constant.DefaultPageSize
	}
	if pageSize > constant.MaxPageSize {
		return constant.MaxPageSize
	}
	return pageSize
}

func totalPages(total int64, pageSize int) int64 {
	if total == 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
