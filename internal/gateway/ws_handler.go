package gateway

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
)

// HandleHertzConnection handles a WebSocket handshake arriving through
// the Hertz HTTP server, used when the realtime endpoint shares the
// HTTP port. The ticket travels as a query parameter and is consumed on
// first use; the session token itself never appears in the URL.
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(503, "connection limit exceeded")
		return
	}

	ticket := string(c.Query(QueryTicket))
	if ticket == "" {
		c.String(400, "missing ticket")
		return
	}

	userId, err := s.verifier.Verify(ctx, ticket)
	if err != nil {
		log.CtxDebug(ctx, "ticket verification failed: %v", err)
		c.String(401, "unauthorized")
		return
	}

	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		wsConn := NewHertzClientConn(conn, s.cfg.WebSocket.MaxMessageSize, s.cfg.WebSocket.WriteChannelSize,
			s.cfg.WebSocket.WriteWait, s.cfg.WebSocket.PongWait, s.cfg.WebSocket.PingPeriod)
		client := NewClient(wsConn, userId, newConnId(), s)

		s.registerChan <- client

		// Blocking read loop keeps the hertz handler goroutine alive for
		// the lifetime of the connection
		client.readLoop()
	})

	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}
}
