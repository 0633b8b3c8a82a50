package service

import (
	"context"

	"github.com/forgeline/agora/internal/entity"
	"github.com/forgeline/agora/internal/repository"
	"github.com/forgeline/agora/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// UserService handles user profile logic
type UserService struct {
	userRepo *repository.UserRepo
}

// NewUserService creates a new UserService
func NewUserService(userRepo *repository.UserRepo) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUserInfo gets a user's public profile
func (s *UserService) GetUserInfo(ctx context.Context, userId int64) (*entity.UserInfo, error) {
	user, err := s.userRepo.GetById(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get user failed: user_id=%d, error=%v", userId, err)
		return nil, errcode.ErrStoreFailure
	}
	if user == nil {
		return nil, errcode.ErrUserNotFound
	}
	return user.ToUserInfo(), nil
}
