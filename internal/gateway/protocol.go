package gateway

import "encoding/json"

// ClientFrame is a message from a connection to the gateway
type ClientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerFrame is a push event from the gateway to a connection
type ServerFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// TopicPayload carries a caller-supplied topic identifier for
// topic:join / topic:leave requests
type TopicPayload struct {
	TopicId string `json:"topic_id"`
}

// PresencePayload is the full online-user snapshot pushed on every
// presence change
type PresencePayload struct {
	UserIds []int64 `json:"user_ids"`
}

// EncodeFrame encodes a server frame to JSON bytes
func EncodeFrame(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(ServerFrame{Event: event, Data: payload})
}
