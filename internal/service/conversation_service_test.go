package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/agora/internal/config"
	"github.com/forgeline/agora/internal/entity"
	"github.com/forgeline/agora/internal/repository"
	"github.com/forgeline/agora/pkg/errcode"
)

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, 20, clampPageSize(0))
	assert.Equal(t, 20, clampPageSize(-3))
	assert.Equal(t, 1, clampPageSize(1))
	assert.Equal(t, 50, clampPageSize(50))
	assert.Equal(t, 50, clampPageSize(500))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, int64(0), totalPages(0, 20))
	assert.Equal(t, int64(1), totalPages(1, 20))
	assert.Equal(t, int64(1), totalPages(20, 20))
	assert.Equal(t, int64(2), totalPages(21, 20))
}

func TestGetOrCreateConversation_Self(t *testing.T) {
	s := &ConversationService{}
	_, err := s.GetOrCreateConversation(context.Background(), 5, 5)
	assert.Equal(t, errcode.ErrSelfConversation, err)
}

func TestSendMessage_InvalidBody(t *testing.T) {
	s := &ConversationService{}
	_, err := s.SendMessage(context.Background(), 1, 1, "")
	assert.Equal(t, errcode.ErrEmptyBody, err)
}

// recordingPusher captures push calls for assertions
type recordingPusher struct {
	events  []string
	targets [][]int64
}

func (p *recordingPusher) PublishToUsers(event string, payload interface{}, userIds ...int64) {
	p.events = append(p.events, event)
	p.targets = append(p.targets, userIds)
}

// testRepos connects to the MySQL instance named by AGORA_TEST_MYSQL_*
// env vars, skipping when none is configured.
func testRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	host := os.Getenv("AGORA_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("AGORA_TEST_MYSQL_HOST not set, skipping database test")
	}

	port := 3306
	if p := os.Getenv("AGORA_TEST_MYSQL_PORT"); p != "" {
		port, _ = strconv.Atoi(p)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		MySQL: config.MySQLConfig{
			Host:         host,
			Port:         port,
			User:         envOr("AGORA_TEST_MYSQL_USER", "root"),
			Password:     os.Getenv("AGORA_TEST_MYSQL_PASSWORD"),
			Database:     envOr("AGORA_TEST_MYSQL_DATABASE", "agora_test"),
			Charset:      "utf8mb4",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		Redis: config.RedisConfig{Host: "127.0.0.1", Port: 6379},
	}

	repos, err := repository.NewRepositories(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	require.NoError(t, repos.DB.AutoMigrate(
		&entity.User{}, &entity.Conversation{}, &entity.Participant{}, &entity.Message{},
	))

	return repos
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func createTestUser(t *testing.T, repos *repository.Repositories, name string) int64 {
	t.Helper()
	user := &entity.User{
		Username: fmt.Sprintf("%s_%d", name, time.Now().UnixNano()),
		Password: "x",
	}
	require.NoError(t, repos.User.Create(context.Background(), user))
	return user.Id
}

func unreadFor(t *testing.T, s *ConversationService, userId, conversationId int64) int64 {
	t.Helper()
	overviews, err := s.ListConversations(context.Background(), userId)
	require.NoError(t, err)
	for _, ov := range overviews {
		if ov.ConversationId == conversationId {
			return ov.UnreadCount
		}
	}
	t.Fatalf("conversation %d not in overview for user %d", conversationId, userId)
	return 0
}

func TestConversationFlow(t *testing.T) {
	repos := testRepos(t)
	ctx := context.Background()

	s := NewConversationService(repos)
	pusher := &recordingPusher{}
	s.SetPusher(pusher)

	alice := createTestUser(t, repos, "alice")
	bob := createTestUser(t, repos, "bob")
	carol := createTestUser(t, repos, "carol")

	t.Run("get or create is idempotent and side-agnostic", func(t *testing.T) {
		first, err := s.GetOrCreateConversation(ctx, alice, bob)
		require.NoError(t, err)
		assert.True(t, first.Created)

		again, err := s.GetOrCreateConversation(ctx, alice, bob)
		require.NoError(t, err)
		assert.False(t, again.Created)
		assert.Equal(t, first.ConversationId, again.ConversationId)

		reversed, err := s.GetOrCreateConversation(ctx, bob, alice)
		require.NoError(t, err)
		assert.False(t, reversed.Created)
		assert.Equal(t, first.ConversationId, reversed.ConversationId)
	})

	t.Run("concurrent get or create converges on one conversation", func(t *testing.T) {
		dave := createTestUser(t, repos, "dave")
		erin := createTestUser(t, repos, "erin")

		const attempts = 8
		results := make(chan *CreateConversationResult, attempts)
		errs := make(chan error, attempts)

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			// Half the callers approach from each side of the pair
			caller, target := dave, erin
			if i%2 == 1 {
				caller, target = erin, dave
			}
			wg.Add(1)
			go func(caller, target int64) {
				defer wg.Done()
				res, err := s.GetOrCreateConversation(ctx, caller, target)
				if err != nil {
					errs <- err
					return
				}
				results <- res
			}(caller, target)
		}
		wg.Wait()
		close(results)
		close(errs)

		// A loser of the insert race must get the winner's id, not an error
		for err := range errs {
			t.Fatalf("concurrent get or create failed: %v", err)
		}

		ids := make(map[int64]struct{})
		created := 0
		for res := range results {
			ids[res.ConversationId] = struct{}{}
			if res.Created {
				created++
			}
		}
		assert.Len(t, ids, 1)
		assert.Equal(t, 1, created)
	})

	t.Run("unknown peer", func(t *testing.T) {
		_, err := s.GetOrCreateConversation(ctx, alice, 1<<60)
		assert.Equal(t, errcode.ErrUserNotFound, err)
	})

	conv, err := s.GetOrCreateConversation(ctx, alice, bob)
	require.NoError(t, err)
	convId := conv.ConversationId

	t.Run("send message pushes to both participants", func(t *testing.T) {
		msg, err := s.SendMessage(ctx, convId, alice, "hi bob")
		require.NoError(t, err)
		assert.NotZero(t, msg.Id)

		require.Len(t, pusher.events, 1)
		assert.Equal(t, EventNewMessage, pusher.events[0])
		assert.ElementsMatch(t, []int64{alice, bob}, pusher.targets[0])
	})

	t.Run("unread counts only the peer's unseen messages", func(t *testing.T) {
		assert.Equal(t, int64(1), unreadFor(t, s, bob, convId))
		// The sender never counts their own message as unread
		assert.Equal(t, int64(0), unreadFor(t, s, alice, convId))
	})

	t.Run("mark read clears unread", func(t *testing.T) {
		require.NoError(t, s.MarkRead(ctx, convId, bob))
		assert.Equal(t, int64(0), unreadFor(t, s, bob, convId))

		time.Sleep(5 * time.Millisecond)
		_, err := s.SendMessage(ctx, convId, alice, "one more")
		require.NoError(t, err)
		assert.Equal(t, int64(1), unreadFor(t, s, bob, convId))
	})

	t.Run("history pages oldest to newest", func(t *testing.T) {
		messages, meta, err := s.ListMessages(ctx, convId, bob, 1, 10)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "hi bob", messages[0].Body)
		assert.Equal(t, "one more", messages[1].Body)
		assert.Equal(t, int64(2), meta.Total)
		assert.Equal(t, int64(1), meta.TotalPages)
	})

	t.Run("access control", func(t *testing.T) {
		_, _, err := s.ListMessages(ctx, convId, carol, 1, 10)
		assert.Equal(t, errcode.ErrNotParticipant, err)

		_, err2 := s.SendMessage(ctx, convId, carol, "let me in")
		assert.Equal(t, errcode.ErrNotParticipant, err2)

		_, _, err = s.ListMessages(ctx, int64(1)<<60, bob, 1, 10)
		assert.Equal(t, errcode.ErrConvNotFound, err)

		assert.Equal(t, errcode.ErrConvNotFound, s.MarkRead(ctx, int64(1)<<60, bob))
	})
}
