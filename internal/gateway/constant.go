package gateway

import "time"

// Server push events
const (
	EventNewMessage     = "dm:new"
	EventPresenceUpdate = "presence:update"
)

// Client-originated events
const (
	EventTopicJoin  = "topic:join"
	EventTopicLeave = "topic:leave"
)

// Timeout constants
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// PingPeriod is period between pings. Must be less than PongWait
	PingPeriod = (PongWait * 9) / 10
)

// Query parameter keys
const (
	QueryTicket = "ticket"
)

// normalizeTimeouts fills unset connection timeouts with the defaults
// above. PingPeriod must stay below PongWait or pings arrive too late to
// keep the read deadline alive.
func normalizeTimeouts(writeWait, pongWait, pingPeriod time.Duration) (time.Duration, time.Duration, time.Duration) {
	if writeWait <= 0 {
		writeWait = WriteWait
	}
	if pongWait <= 0 {
		pongWait = PongWait
	}
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = (pongWait * 9) / 10
	}
	return writeWait, pongWait, pingPeriod
}
