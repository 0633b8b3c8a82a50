package gateway

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"
)

// Client represents one authenticated realtime connection. A user may hold
// any number of concurrent clients (tabs, devices); each one joins rooms
// and counts toward presence independently.
type Client struct {
	conn      ClientConn
	UserId    int64
	ConnId    string
	server    *WsServer
	closed    atomic.Bool
	closedErr error
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new client
func NewClient(conn ClientConn, userId int64, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:   conn,
		UserId: userId,
		ConnId: connId,
		server: server,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop continuously reads frames from the connection. Its deferred
// cleanup is the single place a connection leaves presence and its rooms,
// and it runs no matter how the connection died.
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: user_id=%d, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%d, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		c.handleFrame(message)
	}
}

// handleFrame handles a single incoming frame. Malformed frames and
// unknown events are dropped without failing the connection.
func (c *Client) handleFrame(message []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		log.CtxDebug(c.ctx, "drop malformed frame: user_id=%d, error=%v", c.UserId, err)
		return
	}

	switch frame.Event {
	case EventTopicJoin:
		c.server.HandleTopicJoin(c.ctx, c, frame.Data)
	case EventTopicLeave:
		c.server.HandleTopicLeave(c.ctx, c, frame.Data)
	default:
		log.CtxDebug(c.ctx, "drop unknown event: user_id=%d, event=%s", c.UserId, frame.Event)
	}
}

// SendEvent pushes a server frame to this connection
func (c *Client) SendEvent(event string, payload interface{}) error {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	return c.write(data)
}

// write queues raw bytes for the connection's write loop
func (c *Client) write(data []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.conn.WriteMessage(data)
}

// Close closes the client connection
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when the connection ends for any reason
func (c *Client) close() {
	c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
