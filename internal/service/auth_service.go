package service

import (
	"context"

	"github.com/forgeline/agora/internal/config"
	"github.com/forgeline/agora/internal/entity"
	"github.com/forgeline/agora/internal/repository"
	"github.com/forgeline/agora/pkg/errcode"
	"github.com/forgeline/agora/pkg/jwt"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles authentication and realtime credential issuance
type AuthService struct {
	userRepo    *repository.UserRepo
	cfg         *config.Config
	ticketStore *jwt.TicketStore
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo *repository.UserRepo, cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		cfg:         cfg,
		ticketStore: jwt.NewTicketStore(rdb, cfg.JWT.TicketTTLSeconds),
	}
}

// RegisterRequest represents user registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// LoginRequest represents user login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents user login response
type LoginResponse struct {
	Token string           `json:"token"`
	User  *entity.UserInfo `json:"user"`
}

// TicketResponse carries a freshly issued realtime credential
type TicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int64  `json:"expires_in"`
}

// Register registers a new user
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*entity.UserInfo, error) {
	if req.Username == "" || req.Password == "" {
		return nil, errcode.ErrInvalidParam.WithMsg("username and password are required")
	}

	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		log.CtxError(ctx, "check username failed: %v", err)
		return nil, errcode.ErrStoreFailure
	}
	if existing != nil {
		return nil, errcode.ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.CtxError(ctx, "hash password failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	user := &entity.User{
		Username: req.Username,
		Password: string(hashedPassword),
		Avatar:   req.Avatar,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		log.CtxError(ctx, "create user failed: %v", err)
		return nil, errcode.ErrStoreFailure
	}

	log.CtxInfo(ctx, "user registered: user_id=%d, username=%s", user.Id, user.Username)
	return user.ToUserInfo(), nil
}

// Login authenticates a user and returns a session token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		log.CtxError(ctx, "get user failed: %v", err)
		return nil, errcode.ErrStoreFailure
	}
	if user == nil {
		return nil, errcode.ErrLoginFailed
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errcode.ErrLoginFailed
	}

	token, err := jwt.GenerateToken(user.Id, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		log.CtxError(ctx, "generate token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user logged in: user_id=%d", user.Id)
	return &LoginResponse{
		Token: token,
		User:  user.ToUserInfo(),
	}, nil
}

// IssueTicket issues a short-lived one-time realtime credential for an
// already-authenticated user. The socket handshake presents this ticket
// instead of the session token.
func (s *AuthService) IssueTicket(ctx context.Context, userId int64) (*TicketResponse, error) {
	ticket, err := s.ticketStore.Issue(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "issue ticket failed: user_id=%d, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}

	return &TicketResponse{
		Ticket:    ticket,
		ExpiresIn: int64(s.ticketStore.TTL().Seconds()),
	}, nil
}

// Verify consumes a realtime credential and returns the user it belongs to.
// It satisfies the gateway's IdentityVerifier contract.
func (s *AuthService) Verify(ctx context.Context, credential string) (int64, error) {
	userId, err := s.ticketStore.Consume(ctx, credential)
	if err != nil {
		return 0, err
	}
	return userId, nil
}
