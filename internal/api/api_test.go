package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/robertwalker/planning-game-server/internal/archive"
	"github.com/robertwalker/planning-game-server/internal/game"
	"github.com/robertwalker/planning-game-server/internal/session"
)

type stubArchive struct {
	recs []archive.Record
}

func (s *stubArchive) Get(_ context.Context, gameID string) (archive.Record, error) {
	for _, r := range s.recs {
		if r.GameID == gameID {
			return r, nil
		}
	}
	return archive.Record{}, archive.ErrNotFound
}

func (s *stubArchive) List(_ context.Context, limit int) ([]archive.Record, error) {
	if limit > 0 && limit < len(s.recs) {
		return s.recs[:limit], nil
	}
	return s.recs, nil
}

func newEngine(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	h.Register(r)
	return r
}

func do(r http.Handler, method, path string, auth ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newEngine(&Handler{Sessions: session.NewRegistry()})
	w := do(r, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		OK       bool `json:"ok"`
		Sessions int  `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Sessions != 0 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestSessionSnapshot(t *testing.T) {
	reg := session.NewRegistry()
	s, err := reg.Create("host", game.StartGame{GameMasterName: "Alice", PointScale: game.Linear})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r := newEngine(&Handler{Sessions: reg})

	w := do(r, http.MethodGet, "/api/sessions/"+s.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap game.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.GameID != s.ID || snap.State != game.StateStarted || snap.GameMasterName != "Alice" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	w = do(r, http.MethodGet, "/api/sessions/missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	reg := session.NewRegistry()
	s, _ := reg.Create("host", game.StartGame{GameMasterName: "Alice", PointScale: game.Linear})
	r := newEngine(&Handler{Sessions: reg, Admin: gin.Accounts{"admin": "secret"}})

	if w := do(r, http.MethodGet, "/api/admin/sessions"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}

	w := do(r, http.MethodGet, "/api/admin/sessions", "admin", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Sessions []session.Info `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].GameID != s.ID {
		t.Fatalf("unexpected sessions %s", w.Body.String())
	}

	if w := do(r, http.MethodDelete, "/api/admin/sessions/"+s.ID, "admin", "secret"); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected session destroyed, got %d", reg.Len())
	}
	if w := do(r, http.MethodDelete, "/api/admin/sessions/"+s.ID, "admin", "secret"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestAdminDisabledWithoutCredentials(t *testing.T) {
	r := newEngine(&Handler{Sessions: session.NewRegistry()})
	if w := do(r, http.MethodGet, "/api/admin/sessions", "admin", "secret"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestArchiveRoutes(t *testing.T) {
	arch := &stubArchive{recs: []archive.Record{
		{GameID: "g2", GameMasterName: "Alice", PointScale: game.Linear, Scoreboard: []game.ScoredRound{{StoryName: "Logout", PointValue: "one"}}},
		{GameID: "g1", GameMasterName: "Alice", PointScale: game.Fibonacci},
	}}
	r := newEngine(&Handler{Sessions: session.NewRegistry(), Archive: arch})

	w := do(r, http.MethodGet, "/api/archive?limit=1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Games []archive.Record `json:"games"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Games) != 1 || list.Games[0].GameID != "g2" {
		t.Fatalf("unexpected list %s", w.Body.String())
	}

	if w := do(r, http.MethodGet, "/api/archive?limit=zero"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/archive/g2")
	var rec archive.Record
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || len(rec.Scoreboard) != 1 || rec.Scoreboard[0].PointValue != "one" {
		t.Fatalf("unexpected record %d %s", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodGet, "/api/archive/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestArchiveRoutesAbsentWithoutReader(t *testing.T) {
	r := newEngine(&Handler{Sessions: session.NewRegistry()})
	if w := do(r, http.MethodGet, "/api/archive"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
