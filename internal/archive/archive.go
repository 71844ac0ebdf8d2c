// Package archive keeps the scoreboards of finished games.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/robertwalker/planning-game-server/internal/game"
)

var ErrNotFound = errors.New("archived game not found")

// Record is one finished game.
type Record struct {
	GameID         string             `json:"gameID"`
	GameMasterName string             `json:"gameMasterName"`
	PointScale     game.PointScale    `json:"pointScale"`
	PlayerNames    []string           `json:"playerNames"`
	Scoreboard     []game.ScoredRound `json:"scoreboard"`
	// Completed is false when the game was torn down before EndGame.
	Completed bool      `json:"completed"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// Archiver stores finished games.
type Archiver interface {
	Archive(ctx context.Context, rec Record) error
}

// Reader serves archived games back.
type Reader interface {
	Get(ctx context.Context, gameID string) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
}

// Nop discards every record.
type Nop struct{}

func (Nop) Archive(context.Context, Record) error { return nil }
