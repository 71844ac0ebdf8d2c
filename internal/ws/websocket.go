package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/robertwalker/planning-game-server/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	pongWait       = 2 * pingPeriod
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

var (
	errConnClosed = errors.New("connection closed")
	errSendFull   = errors.New("send buffer full")
)

// wsConn is a plain WebSocket client. Every text frame carries one envelope.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsConn) ID() string { return c.id }

// Send never blocks: a slow client loses messages rather than stalling a
// session worker.
func (c *wsConn) Send(env protocol.Envelope) error {
	b, err := env.Marshal()
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return errSendFull
	}
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// MountWebSocket serves the plain WebSocket transport on /ws.
func (srv *Server) MountWebSocket(r *gin.Engine) {
	upgrader := websocket.Upgrader{CheckOrigin: srv.requestAllowed}
	r.GET("/ws", func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		conn := &wsConn{
			id:   "ws-" + uuid.NewString(),
			ws:   ws,
			send: make(chan []byte, sendBuffer),
			done: make(chan struct{}),
		}
		log.Info().Str("conn", conn.id).Msg("websocket connected")
		go srv.writePump(conn)
		srv.readPump(conn)
	})
}

func (srv *Server) readPump(c *wsConn) {
	defer func() {
		srv.Router.Disconnect(c)
		c.close()
		log.Info().Str("conn", c.id).Msg("websocket disconnected")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn", c.id).Msg("websocket read failed")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		srv.Router.Receive(c, msg)
	}
}

func (srv *Server) writePump(c *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
