package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/forgeline/agora/pkg/constant"
	"github.com/forgeline/agora/pkg/errcode"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TicketStore issues and consumes short-lived, single-use realtime
// credentials. A ticket is an opaque nonce mapped to a user id in Redis;
// the realtime handshake presents the ticket instead of the session token
// so the session JWT never appears on the socket query string.
type TicketStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTicketStore creates a new TicketStore
func NewTicketStore(rdb *redis.Client, ttlSeconds int) *TicketStore {
	if ttlSeconds <= 0 {
		ttlSeconds = 60
	}
	return &TicketStore{
		rdb: rdb,
		ttl: time.Duration(ttlSeconds) * time.Second,
	}
}

// TTL returns the configured ticket lifetime
func (s *TicketStore) TTL() time.Duration {
	return s.ttl
}

func (s *TicketStore) ticketKey(nonce string) string {
	return fmt.Sprintf(constant.RedisKeyTicket(), nonce)
}

// Issue creates a new one-time ticket for the user
func (s *TicketStore) Issue(ctx context.Context, userId int64) (string, error) {
	nonce := uuid.New().String()
	key := s.ticketKey(nonce)

	if err := s.rdb.Set(ctx, key, strconv.FormatInt(userId, 10), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store ticket: %w", err)
	}

	return nonce, nil
}

// Consume validates a ticket and deletes it in the same operation so a
// ticket can authenticate at most one connection.
func (s *TicketStore) Consume(ctx context.Context, nonce string) (int64, error) {
	if nonce == "" {
		return 0, errcode.ErrTicketInvalid
	}

	key := s.ticketKey(nonce)
	val, err := s.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, errcode.ErrTicketInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("failed to consume ticket: %w", err)
	}

	userId, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, errcode.ErrTicketInvalid
	}

	return userId, nil
}
