// Package api serves the HTTP side of the server: health, session
// snapshots, admin controls and the scoreboard archive.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robertwalker/planning-game-server/internal/archive"
	"github.com/robertwalker/planning-game-server/internal/game"
	"github.com/robertwalker/planning-game-server/internal/session"
	"github.com/rs/zerolog/log"
)

const snapshotTimeout = 2 * time.Second

type Handler struct {
	Sessions *session.Registry
	// Archive is nil when the configured archive cannot be read back.
	Archive   archive.Reader
	// Admin holds the basic-auth accounts for the admin routes. Nil leaves
	// them unmounted.
	Admin gin.Accounts
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/api/sessions/:gameID", h.snapshot)

	if len(h.Admin) > 0 {
		admin := r.Group("/api/admin", gin.BasicAuth(h.Admin))
		admin.GET("/sessions", h.listSessions)
		admin.DELETE("/sessions/:gameID", h.destroySession)
	}

	if h.Archive != nil {
		r.GET("/api/archive", h.listArchive)
		r.GET("/api/archive/:gameID", h.getArchive)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC(), "sessions": h.Sessions.Len()})
}

func (h *Handler) snapshot(c *gin.Context) {
	s, err := h.Sessions.Get(c.Param("gameID"))
	if err != nil {
		writeError(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), snapshotTimeout)
	defer cancel()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.Sessions.List()})
}

func (h *Handler) destroySession(c *gin.Context) {
	gameID := c.Param("gameID")
	if !h.Sessions.Destroy(gameID) {
		writeError(c, game.Newf(game.CodeSessionNotFound, "game %q not found", gameID))
		return
	}
	log.Info().Str("gameID", gameID).Msg("session destroyed by admin")
	c.Status(http.StatusNoContent)
}

func (h *Handler) listArchive(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer", "code": game.CodeValidation})
			return
		}
		limit = n
	}
	recs, err := h.Archive.List(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("list archive")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": recs})
}

func (h *Handler) getArchive(c *gin.Context) {
	rec, err := h.Archive.Get(c.Request.Context(), c.Param("gameID"))
	if errors.Is(err, archive.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("gameID", c.Param("gameID")).Msg("get archive")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive unavailable"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrSessionBusy):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": game.CodeOf(err)})
}
