package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	eiows "github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/robertwalker/planning-game-server/internal/protocol"
	"github.com/robertwalker/planning-game-server/internal/router"
	"github.com/rs/zerolog/log"
)

// MessageEvent is the single socket.io event name used in both directions.
const MessageEvent = "message"

type Server struct {
	Router         *router.Router
	AllowedOrigins []string
}

func New(rt *router.Router, allowedOrigins []string) *Server {
	return &Server{Router: rt, AllowedOrigins: allowedOrigins}
}

// sioConn adapts a socket.io connection to router.Conn. One is created per
// connection and kept as the socket's context so its identity is stable.
type sioConn struct {
	s socketio.Conn
}

func (c *sioConn) ID() string { return "sio-" + c.s.ID() }

func (c *sioConn) Send(env protocol.Envelope) error {
	b, err := env.Marshal()
	if err != nil {
		return err
	}
	c.s.Emit(MessageEvent, string(b))
	return nil
}

func connOf(s socketio.Conn) *sioConn {
	if c, ok := s.Context().(*sioConn); ok {
		return c
	}
	c := &sioConn{s: s}
	s.SetContext(c)
	return c
}

// Mount attaches the Socket.IO server to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&polling.Transport{Client: &http.Client{Timeout: time.Minute}, CheckOrigin: srv.requestAllowed},
			&eiows.Transport{CheckOrigin: srv.requestAllowed},
		},
	})

	io.OnConnect("/", func(s socketio.Conn) error {
		connOf(s)
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// Clients emit the envelope as a JSON string.
	io.OnEvent("/", MessageEvent, func(s socketio.Conn, msg string) {
		srv.Router.Receive(connOf(s), []byte(msg))
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		if s == nil {
			log.Error().Err(e).Msg("socket error")
			return
		}
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if c, ok := s.Context().(*sioConn); ok {
			srv.Router.Disconnect(c)
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()

	r.GET("/socket.io/*any", srv.requireOrigin, gin.WrapH(io))
	r.POST("/socket.io/*any", srv.requireOrigin, gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if !srv.originAllowed(origin) {
			c.Status(http.StatusForbidden)
			return
		}
		if len(srv.AllowedOrigins) == 0 {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) requireOrigin(c *gin.Context) {
	if !srv.originAllowed(c.GetHeader("Origin")) {
		log.Warn().Str("origin", c.GetHeader("Origin")).Msg("socket origin refused")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Next()
}

func (srv *Server) requestAllowed(r *http.Request) bool {
	return srv.originAllowed(r.Header.Get("Origin"))
}

// originAllowed accepts everything when no origins are configured.
func (srv *Server) originAllowed(origin string) bool {
	if len(srv.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, o := range srv.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(o), origin) {
			return true
		}
	}
	return false
}
