package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/robertwalker/planning-game-server/internal/game"
	"github.com/robertwalker/planning-game-server/internal/protocol"
	"github.com/robertwalker/planning-game-server/internal/router"
	"github.com/robertwalker/planning-game-server/internal/session"
)

func TestOriginAllowed(t *testing.T) {
	open := &Server{}
	if !open.originAllowed("https://anything.example") {
		t.Fatal("expected any origin when none configured")
	}

	strict := &Server{AllowedOrigins: []string{" https://planning.example "}}
	if !strict.originAllowed("https://PLANNING.example") {
		t.Fatal("expected configured origin to match case-insensitively")
	}
	if strict.originAllowed("https://evil.example") {
		t.Fatal("expected unknown origin to be refused")
	}
	if !strict.originAllowed("") {
		t.Fatal("expected same-origin requests without an Origin header to pass")
	}
}

func TestSocketPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv := New(router.New(session.NewRegistry()), []string{"https://planning.example"})
	io := srv.Mount(r)
	defer io.Close()

	req := httptest.NewRequest(http.MethodOptions, "/socket.io/", nil)
	req.Header.Set("Origin", "https://planning.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://planning.example" {
		t.Fatalf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/socket.io/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestSocketHandshakeRefusesUnknownOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv := New(router.New(session.NewRegistry()), []string{"https://planning.example"})
	io := srv.Mount(r)
	defer io.Close()

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := httptest.NewRequest(method, "/socket.io/?EIO=3&transport=polling", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", method, w.Code)
		}
	}
}

func dialSocketIO(t *testing.T) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv := New(router.New(session.NewRegistry()), nil)
	io := srv.Mount(r)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		_ = io.Close()
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket.io/?EIO=3&transport=websocket"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func emitMessage(t *testing.T, c *websocket.Conn, clientID, name string, payload any) {
	t.Helper()
	inner, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := protocol.Envelope{ClientID: clientID, EventName: name, Event: string(inner)}.Marshal()
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	frame, err := json.Marshal([]string{MessageEvent, string(raw)})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := c.WriteMessage(websocket.TextMessage, append([]byte("42"), frame...)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// nextMessage skips engine.io housekeeping frames until a message event arrives.
func nextMessage(t *testing.T, c *websocket.Conn) game.Event {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.HasPrefix(string(raw), "42") {
			continue
		}
		var args []string
		if err := json.Unmarshal(raw[2:], &args); err != nil {
			t.Fatalf("decode frame %s: %v", raw, err)
		}
		if len(args) != 2 || args[0] != MessageEvent {
			t.Fatalf("unexpected frame %s", raw)
		}
		var env protocol.Envelope
		if err := json.Unmarshal([]byte(args[1]), &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		ev, err := protocol.DecodeEvent(env)
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev
	}
}

func TestSocketIOMessageRoundTrip(t *testing.T) {
	c := dialSocketIO(t)

	emitMessage(t, c, "alice", game.NameStartGame, map[string]string{"gameMasterName": "Alice", "pointScale": "linear"})
	started, ok := nextMessage(t, c).(*game.GameStarted)
	if !ok {
		t.Fatal("expected GameStarted")
	}
	if started.GameMasterName != "Alice" || started.GameToken == "" {
		t.Fatalf("unexpected GameStarted %+v", started)
	}

	emitMessage(t, c, "mallory", game.NameEndGame, map[string]string{"gameID": started.GameID})
	if se, ok := nextMessage(t, c).(*game.SocketError); !ok || se.ErrorMessage != router.ErrClientMismatch.Error() {
		t.Fatalf("expected client mismatch, got %+v", se)
	}
}
