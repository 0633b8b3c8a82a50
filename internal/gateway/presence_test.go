package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceTracker_Edges(t *testing.T) {
	tracker := NewPresenceTracker()

	// First connection is the came-online edge
	assert.True(t, tracker.OnConnect(1))
	// Second connection for the same user is not
	assert.False(t, tracker.OnConnect(1))

	// Closing one of two connections keeps the user online
	assert.False(t, tracker.OnDisconnect(1))
	// Closing the last one is the went-offline edge
	assert.True(t, tracker.OnDisconnect(1))

	assert.Equal(t, 0, tracker.OnlineUserCount())
}

func TestPresenceTracker_DisconnectUnknownUser(t *testing.T) {
	tracker := NewPresenceTracker()

	// A disconnect for a user never seen must not underflow
	assert.False(t, tracker.OnDisconnect(42))
	assert.Equal(t, 0, tracker.OnlineUserCount())

	// And must not poison later connects
	assert.True(t, tracker.OnConnect(42))
	assert.Equal(t, 1, tracker.OnlineUserCount())
}

func TestPresenceTracker_Snapshot(t *testing.T) {
	tracker := NewPresenceTracker()

	tracker.OnConnect(30)
	tracker.OnConnect(10)
	tracker.OnConnect(20)
	tracker.OnConnect(10) // second tab, still one entry

	assert.Equal(t, []int64{10, 20, 30}, tracker.Snapshot())

	tracker.OnDisconnect(20)
	assert.Equal(t, []int64{10, 30}, tracker.Snapshot())
}

func TestPresenceTracker_SnapshotIsCopy(t *testing.T) {
	tracker := NewPresenceTracker()
	tracker.OnConnect(1)

	snap := tracker.Snapshot()
	snap[0] = 999

	assert.Equal(t, []int64{1}, tracker.Snapshot())
}
