package gateway

import (
	"sort"
	"sync"
)

// PresenceTracker folds per-connection lifecycle events into a per-user
// online signal. A user with several tabs or devices stays online until
// the last connection goes away. State lives only in process memory and
// is rebuilt from zero on restart.
type PresenceTracker struct {
	mu     sync.Mutex
	counts map[int64]int
}

// NewPresenceTracker creates a new PresenceTracker
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		counts: make(map[int64]int),
	}
}

// OnConnect records a new live connection for the user. Returns true on
// the came-online edge (count went 0 -> 1).
func (t *PresenceTracker) OnConnect(userId int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[userId]++
	return t.counts[userId] == 1
}

// OnDisconnect records a closed connection for the user. Returns true on
// the went-offline edge; entries are removed at zero, never kept.
func (t *PresenceTracker) OnDisconnect(userId int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	count, ok := t.counts[userId]
	if !ok {
		return false
	}

	if count <= 1 {
		delete(t.counts, userId)
		return true
	}

	t.counts[userId] = count - 1
	return false
}

// Snapshot returns the sorted set of user ids with at least one live
// connection.
func (t *PresenceTracker) Snapshot() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	userIds := make([]int64, 0, len(t.counts))
	for userId := range t.counts {
		userIds = append(userIds, userId)
	}
	sort.Slice(userIds, func(i, j int) bool { return userIds[i] < userIds[j] })
	return userIds
}

// OnlineUserCount returns the number of users currently online
func (t *PresenceTracker) OnlineUserCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}
