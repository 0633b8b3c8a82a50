package entity

// Conversation represents a direct-message conversation between two users.
// The pair key is unique, so at most one conversation exists per unordered
// user pair. updated_at advances on every new message.
type Conversation struct {
	Id        int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	PairKey   string `json:"-" gorm:"column:pair_key;uniqueIndex;size:48"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// Participant represents a user's membership row in a conversation,
// carrying that user's own read cursor. LastReadAt is nil until the user
// first reads the conversation and only moves forward.
type Participant struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId int64  `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:idx_conv_user"`
	UserId         int64  `json:"user_id" gorm:"column:user_id;uniqueIndex:idx_conv_user"`
	LastReadAt     *int64 `json:"last_read_at" gorm:"column:last_read_at"`
}

// TableName returns the table name for Participant
func (Participant) TableName() string {
	return "conversation_participants"
}

// ConversationOverview is one row of a user's conversation listing:
// the peer's public profile, the latest message and the caller's unread state.
type ConversationOverview struct {
	ConversationId  int64   `json:"conversation_id" gorm:"column:conversation_id"`
	PeerId          int64   `json:"peer_id" gorm:"column:peer_id"`
	PeerUsername    string  `json:"peer_username" gorm:"column:peer_username"`
	PeerAvatar      string  `json:"peer_avatar" gorm:"column:peer_avatar"`
	LastMessageBody *string `json:"last_message_body" gorm:"column:last_message_body"`
	LastMessageAt   *int64  `json:"last_message_at" gorm:"column:last_message_at"`
	LastReadAt      *int64  `json:"last_read_at" gorm:"column:last_read_at"`
	UnreadCount     int64   `json:"unread_count" gorm:"column:unread_count"`
	UpdatedAt       int64   `json:"updated_at" gorm:"column:updated_at"`
}
