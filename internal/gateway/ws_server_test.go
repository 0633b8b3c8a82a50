package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records written frames instead of touching a socket
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeConn) ReadMessage() ([]byte, error) { select {} }

func (f *fakeConn) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnClosed
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

// newTestServer builds a gateway without running its loops, so tests can
// drive registration and push delivery synchronously
func newTestServer() *WsServer {
	return &WsServer{
		rdb:            redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
		rooms:          NewRoomMap(),
		presence:       NewPresenceTracker(),
		registerChan:   make(chan *Client, 16),
		unregisterChan: make(chan *Client, 16),
		pushChan:       make(chan *PushTask, 64),
		maxConnNum:     100,
	}
}

func register(s *WsServer, userId int64, connId string) (*Client, *fakeConn) {
	fc := &fakeConn{}
	client := NewClient(fc, userId, connId, s)
	s.registerClient(context.Background(), client)
	return client, fc
}

func drainPush(s *WsServer) []*PushTask {
	var tasks []*PushTask
	for {
		select {
		case task := <-s.pushChan:
			tasks = append(tasks, task)
		default:
			return tasks
		}
	}
}

func decodeFrame(t *testing.T, data []byte) ServerFrame {
	t.Helper()
	var frame ServerFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestRegisterJoinsUserRoom(t *testing.T) {
	s := newTestServer()
	client, _ := register(s, 7, "conn-7")

	members := s.rooms.Members("user:7")
	require.Len(t, members, 1)
	assert.Equal(t, client.ConnId, members[0].ConnId)
	assert.Equal(t, int64(1), s.OnlineConnCount())
	assert.Equal(t, 1, s.OnlineUserCount())
}

func TestPresenceBroadcastOnEveryChange(t *testing.T) {
	s := newTestServer()

	client, _ := register(s, 1, "conn-1")
	register(s, 2, "conn-2")
	// Second connection for an already-online user still announces
	register(s, 1, "conn-1b")

	tasks := drainPush(s)
	require.Len(t, tasks, 3)

	for _, task := range tasks {
		assert.True(t, task.Broadcast)
	}

	// The last snapshot reflects the full online set
	frame := decodeFrame(t, tasks[2].Data)
	assert.Equal(t, EventPresenceUpdate, frame.Event)

	var payload PresencePayload
	raw, _ := json.Marshal(frame.Data)
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, []int64{1, 2}, payload.UserIds)

	// Dropping one of user 1's two connections keeps them in the snapshot
	s.unregisterClient(context.Background(), client)
	tasks = drainPush(s)
	require.Len(t, tasks, 1)

	frame = decodeFrame(t, tasks[0].Data)
	raw, _ = json.Marshal(frame.Data)
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, []int64{1, 2}, payload.UserIds)
}

func TestUnregisterIsExactlyOnce(t *testing.T) {
	s := newTestServer()
	client, _ := register(s, 1, "conn-1")
	drainPush(s)

	s.unregisterClient(context.Background(), client)
	assert.Equal(t, int64(0), s.OnlineConnCount())
	assert.Equal(t, 0, s.OnlineUserCount())

	// The read loop and an explicit Close can both reach unregister; the
	// second attempt must not drive counters negative or re-broadcast
	s.unregisterClient(context.Background(), client)
	assert.Equal(t, int64(0), s.OnlineConnCount())
	assert.Empty(t, drainPush(s))
}

func TestPublishToUsersDeliversToAllConnections(t *testing.T) {
	s := newTestServer()
	_, fc1 := register(s, 1, "conn-1")
	_, fc1b := register(s, 1, "conn-1b")
	_, fc2 := register(s, 2, "conn-2")
	drainPush(s)

	s.PublishToUsers(EventNewMessage, map[string]int64{"id": 99}, 1)

	tasks := drainPush(s)
	require.Len(t, tasks, 1)
	s.processPushTask(context.Background(), tasks[0])

	assert.Len(t, fc1.received(), 1)
	assert.Len(t, fc1b.received(), 1)
	assert.Empty(t, fc2.received())

	frame := decodeFrame(t, fc1.received()[0])
	assert.Equal(t, EventNewMessage, frame.Event)
}

func TestPushDropsWhenChannelFull(t *testing.T) {
	s := newTestServer()
	s.pushChan = make(chan *PushTask, 1)

	s.Publish("user:1", EventNewMessage, "a")
	// Queue is full now; this one is dropped instead of blocking
	s.Publish("user:1", EventNewMessage, "b")

	assert.Len(t, drainPush(s), 1)
}

func TestTopicJoinLeave(t *testing.T) {
	s := newTestServer()
	client, _ := register(s, 1, "conn-1")
	ctx := context.Background()

	s.HandleTopicJoin(ctx, client, []byte(`{"topic_id":"7"}`))
	assert.Len(t, s.rooms.Members("thread:7"), 1)

	s.HandleTopicLeave(ctx, client, []byte(`{"topic_id":"7"}`))
	assert.Empty(t, s.rooms.Members("thread:7"))
}

func TestTopicJoinIgnoresMalformedIds(t *testing.T) {
	s := newTestServer()
	client, _ := register(s, 1, "conn-1")
	ctx := context.Background()

	for _, data := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"topic_id":""}`),
		[]byte(`{"topic_id":"abc"}`),
		[]byte(`{"topic_id":"-5"}`),
		[]byte(`{"topic_id":"0"}`),
	} {
		s.HandleTopicJoin(ctx, client, data)
	}

	// Only the private user room from registration
	assert.Equal(t, []string{"user:1"}, s.rooms.RoomsOf("conn-1"))
}

func TestClientHandleFrameRoutesTopicEvents(t *testing.T) {
	s := newTestServer()
	client, _ := register(s, 1, "conn-1")

	client.handleFrame([]byte(`{"event":"topic:join","data":{"topic_id":"3"}}`))
	assert.Len(t, s.rooms.Members("thread:3"), 1)

	// Unknown events and garbage are dropped without closing the client
	client.handleFrame([]byte(`{"event":"no:such:event"}`))
	client.handleFrame([]byte(`garbage`))
	assert.False(t, client.IsClosed())

	client.handleFrame([]byte(`{"event":"topic:leave","data":{"topic_id":"3"}}`))
	assert.Empty(t, s.rooms.Members("thread:3"))
}

func TestNormalizeTimeouts(t *testing.T) {
	// Configured values pass through
	w, pong, ping := normalizeTimeouts(5*time.Second, 60*time.Second, 20*time.Second)
	assert.Equal(t, 5*time.Second, w)
	assert.Equal(t, 60*time.Second, pong)
	assert.Equal(t, 20*time.Second, ping)

	// Zero values fall back to the package defaults
	w, pong, ping = normalizeTimeouts(0, 0, 0)
	assert.Equal(t, WriteWait, w)
	assert.Equal(t, PongWait, pong)
	assert.Equal(t, PingPeriod, ping)

	// A ping period at or above the pong wait would let the read deadline
	// lapse between pings, so it is pulled back under it
	_, pong, ping = normalizeTimeouts(0, 10*time.Second, 15*time.Second)
	assert.Equal(t, 9*time.Second, ping)
	assert.Less(t, ping, pong)
}

func TestParseTopicId(t *testing.T) {
	id, ok := parseTopicId([]byte(`{"topic_id":"123"}`))
	assert.True(t, ok)
	assert.Equal(t, int64(123), id)

	_, ok = parseTopicId([]byte(`{"topic_id":"9999999999999999999999"}`))
	assert.False(t, ok)
}
