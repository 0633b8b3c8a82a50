package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"github.com/forgeline/agora/internal/config"
	"github.com/forgeline/agora/pkg/constant"
	"github.com/forgeline/agora/pkg/idgen"
)

// presenceTTL bounds how stale the Redis online mirror can get if the
// process dies without cleaning up.
const presenceTTL = 60 * time.Second

// IdentityVerifier resolves a handshake credential to a user id.
// Implementations must treat credentials as single-use.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (int64, error)
}

// WsServer is the realtime gateway. Registration, unregistration and
// presence bookkeeping run on a single event loop goroutine; fan-out is
// handled by a pool of push workers draining a bounded channel.
type WsServer struct {
	upgrader       *websocket.Upgrader
	cfg            *config.Config
	rdb            *redis.Client
	verifier       IdentityVerifier
	rooms          *RoomMap
	presence       *PresenceTracker
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChan       chan *PushTask
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

// PushTask carries one pre-encoded frame to deliver. Broadcast tasks go
// to every connection; otherwise delivery targets a single room.
type PushTask struct {
	Room      string
	Data      []byte
	Broadcast bool
}

// NewWsServer creates a new realtime gateway server
func NewWsServer(cfg *config.Config, rdb *redis.Client, verifier IdentityVerifier) *WsServer {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
	}

	server := &WsServer{
		upgrader:       upgrader,
		cfg:            cfg,
		rdb:            rdb,
		verifier:       verifier,
		rooms:          NewRoomMap(),
		presence:       NewPresenceTracker(),
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		pushChan:       make(chan *PushTask, cfg.WebSocket.PushChannelSize),
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}

	return server
}

// originChecker builds the handshake origin policy. An empty allow list
// accepts any origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}

	allowSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowSet[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowSet[origin]
		return ok
	}
}

// Run starts the event loop and push workers
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)
	go s.presenceRefreshLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}
	log.Info("started %d push workers", workerNum)
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async frame delivery
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask delivers one task to its targets. A slow consumer only
// loses its own frames; delivery to the rest of the room continues.
func (s *WsServer) processPushTask(ctx context.Context, task *PushTask) {
	var targets []*Client
	if task.Broadcast {
		targets = s.rooms.AllClients()
	} else {
		targets = s.rooms.Members(task.Room)
	}

	for _, client := range targets {
		err := client.write(task.Data)
		if err == nil {
			continue
		}
		log.CtxDebug(ctx, "push to client failed: user_id=%d, conn_id=%s, error=%v", client.UserId, client.ConnId, err)
		if err == ErrWriteChannelFull {
			// Slow consumer: drop the connection rather than let it wedge
			// the push path. The client reconnects and resyncs over HTTP.
			client.close()
		}
	}
}

// registerClient wires a new connection into rooms, presence and the
// Redis online mirror, then announces the presence change to everyone.
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	s.rooms.Add(client)
	s.rooms.Join(constant.UserRoom(client.UserId), client)
	s.onlineConnNum.Add(1)

	cameOnline := s.presence.OnConnect(client.UserId)
	if cameOnline {
		s.setOnline(ctx, client.UserId)
	}

	log.CtxInfo(ctx, "client registered: user_id=%d, conn_id=%s, came_online=%v, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, cameOnline, s.presence.OnlineUserCount(), s.onlineConnNum.Load())

	s.broadcastPresence()
}

// unregisterClient tears a connection down. RoomMap.Remove reporting
// false means cleanup already ran for this connection, so presence is
// only decremented once no matter how many paths reach here.
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	if !s.rooms.Remove(client) {
		return
	}
	s.onlineConnNum.Add(-1)

	wentOffline := s.presence.OnDisconnect(client.UserId)
	if wentOffline {
		s.setOffline(ctx, client.UserId)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%d, conn_id=%s, went_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, wentOffline, s.presence.OnlineUserCount(), s.onlineConnNum.Load())

	s.broadcastPresence()
}

// UnregisterClient queues a client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%d", client.UserId)
	}
}

// broadcastPresence pushes the full online-user snapshot to every
// connection. Full snapshots keep clients correct even if they missed
// earlier updates.
func (s *WsServer) broadcastPresence() {
	payload := PresencePayload{UserIds: s.presence.Snapshot()}
	data, err := EncodeFrame(EventPresenceUpdate, payload)
	if err != nil {
		log.Error("encode presence frame failed: %v", err)
		return
	}
	s.enqueue(&PushTask{Data: data, Broadcast: true})
}

// Publish encodes an event once and queues it for delivery to a room
func (s *WsServer) Publish(room string, event string, payload interface{}) {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		log.Error("encode frame failed: event=%s, error=%v", event, err)
		return
	}
	s.enqueue(&PushTask{Room: room, Data: data})
}

// PublishToUsers delivers an event to every connection of each user
func (s *WsServer) PublishToUsers(event string, payload interface{}, userIds ...int64) {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		log.Error("encode frame failed: event=%s, error=%v", event, err)
		return
	}
	for _, userId := range userIds {
		s.enqueue(&PushTask{Room: constant.UserRoom(userId), Data: data})
	}
}

// enqueue queues a push task without blocking. Dropping under overload
// is preferred over stalling the event loop.
func (s *WsServer) enqueue(task *PushTask) {
	select {
	case s.pushChan <- task:
	default:
		log.Warn("push channel full, frame dropped: room=%s, broadcast=%v", task.Room, task.Broadcast)
	}
}

// setOnline marks the user online in Redis with a liveness TTL
func (s *WsServer) setOnline(ctx context.Context, userId int64) {
	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	if err := s.rdb.Set(ctx, key, constant.StatusOnline, presenceTTL).Err(); err != nil {
		log.CtxWarn(ctx, "set online mirror failed: user_id=%d, error=%v", userId, err)
	}
}

// setOffline removes the user's online mirror key
func (s *WsServer) setOffline(ctx context.Context, userId int64) {
	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		log.CtxWarn(ctx, "del online mirror failed: user_id=%d, error=%v", userId, err)
	}
}

// presenceRefreshLoop re-extends the TTL of online mirror keys so they
// only expire when the process actually goes away.
func (s *WsServer) presenceRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(presenceTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userId := range s.presence.Snapshot() {
				s.setOnline(ctx, userId)
			}
		}
	}
}

// HandleTopicJoin subscribes a connection to an ephemeral topic room.
// Malformed or non-positive topic ids are ignored without failing the
// connection.
func (s *WsServer) HandleTopicJoin(ctx context.Context, client *Client, data []byte) {
	topicId, ok := parseTopicId(data)
	if !ok {
		log.CtxDebug(ctx, "drop invalid topic join: user_id=%d", client.UserId)
		return
	}
	s.rooms.Join(constant.TopicRoom(topicId), client)
}

// HandleTopicLeave unsubscribes a connection from a topic room
func (s *WsServer) HandleTopicLeave(ctx context.Context, client *Client, data []byte) {
	topicId, ok := parseTopicId(data)
	if !ok {
		log.CtxDebug(ctx, "drop invalid topic leave: user_id=%d", client.UserId)
		return
	}
	s.rooms.Leave(constant.TopicRoom(topicId), client)
}

// parseTopicId extracts and validates the topic id from a payload
func parseTopicId(data []byte) (int64, bool) {
	var payload TopicPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, false
	}

	topicId, err := strconv.ParseInt(payload.TopicId, 10, 64)
	if err != nil || topicId <= 0 {
		return 0, false
	}
	return topicId, true
}

// HandleConnection handles a WebSocket handshake on the standalone
// listener (gorilla/websocket path).
func (s *WsServer) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, "connection limit exceeded", http.StatusServiceUnavailable)
		return
	}

	ticket := r.URL.Query().Get(QueryTicket)
	if ticket == "" {
		http.Error(w, "missing ticket", http.StatusBadRequest)
		return
	}

	userId, err := s.verifier.Verify(ctx, ticket)
	if err != nil {
		log.CtxDebug(ctx, "ticket verification failed: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	wsConn := NewWebSocketClientConn(conn, s.cfg.WebSocket.MaxMessageSize, s.cfg.WebSocket.WriteChannelSize,
		s.cfg.WebSocket.WriteWait, s.cfg.WebSocket.PongWait, s.cfg.WebSocket.PingPeriod)
	client := NewClient(wsConn, userId, newConnId(), s)

	s.registerChan <- client
	client.Start()
}

// RunStandalone serves the realtime endpoint on its own listener, used
// when ws_port differs from the HTTP port.
func (s *WsServer) RunStandalone(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleConnection)

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("standalone realtime listener on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// OnlineUserCount returns the number of users currently online
func (s *WsServer) OnlineUserCount() int {
	return s.presence.OnlineUserCount()
}

// OnlineConnCount returns the number of live connections
func (s *WsServer) OnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// newConnId generates an identifier for one connection
func newConnId() string {
	id, err := idgen.NextID()
	if err != nil {
		return uuid.New().String()
	}
	return id
}
