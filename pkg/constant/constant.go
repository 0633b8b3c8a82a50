package constant

import "fmt"

// Message limits
const (
	MaxMessageBodyLength = 2000
)

// Pagination limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// Online status
const (
	StatusOffline = 0
	StatusOnline  = 1
)

// Room name prefixes
const (
	UserRoomPrefix  = "user:"
	TopicRoomPrefix = "thread:"
)

// UserRoom returns the private delivery room name for a user.
func UserRoom(userId int64) string {
	return fmt.Sprintf("%s%d", UserRoomPrefix, userId)
}

// TopicRoom returns the room name for an ephemeral interest group,
// e.g. a thread currently being viewed.
func TopicRoom(topicId int64) string {
	return fmt.Sprintf("%s%d", TopicRoomPrefix, topicId)
}

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyTicket = "ticket:%s" // ticket:{nonce}
	redisKeyOnline = "online:%d" // online:{user_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "agora:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyTicket() string { return redisKeyPrefix + redisKeyTicket }
func RedisKeyOnline() string { return redisKeyPrefix + redisKeyOnline }
