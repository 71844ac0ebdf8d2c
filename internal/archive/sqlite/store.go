// Package sqlite provides a SQLite-backed game archive.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robertwalker/planning-game-server/internal/archive"
	"github.com/robertwalker/planning-game-server/internal/archive/sqlite/migrations"
	"github.com/robertwalker/planning-game-server/internal/game"
	_ "modernc.org/sqlite"
)

const DefaultListLimit = 50

// Store persists finished games in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite archive and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Archive stores rec, replacing any earlier record for the same game.
func (s *Store) Archive(ctx context.Context, rec archive.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.GameID) == "" {
		return fmt.Errorf("game id is required")
	}
	endedAt := rec.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}
	startedAt := rec.StartedAt
	if startedAt.IsZero() {
		startedAt = endedAt
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"scored_rounds", "game_players", "games"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE game_id = ?`, rec.GameID); err != nil {
			return fmt.Errorf("clear archived %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO games (game_id, game_master_name, point_scale, completed, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.GameID,
		rec.GameMasterName,
		string(rec.PointScale),
		rec.Completed,
		toMillis(startedAt),
		toMillis(endedAt),
	); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	for i, name := range rec.PlayerNames {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO game_players (game_id, position, name) VALUES (?, ?, ?)`,
			rec.GameID, i, name,
		); err != nil {
			return fmt.Errorf("insert player: %w", err)
		}
	}
	for i, sr := range rec.Scoreboard {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO scored_rounds (game_id, position, story_name, point_value) VALUES (?, ?, ?, ?)`,
			rec.GameID, i, sr.StoryName, sr.PointValue,
		); err != nil {
			return fmt.Errorf("insert scored round: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// Get returns one archived game.
func (s *Store) Get(ctx context.Context, gameID string) (archive.Record, error) {
	if err := ctx.Err(); err != nil {
		return archive.Record{}, err
	}
	if s == nil || s.sqlDB == nil {
		return archive.Record{}, fmt.Errorf("storage is not configured")
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return archive.Record{}, fmt.Errorf("game id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT game_id, game_master_name, point_scale, completed, started_at, ended_at
		   FROM games
		  WHERE game_id = ?`,
		gameID,
	)
	rec, err := scanGame(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return archive.Record{}, archive.ErrNotFound
		}
		return archive.Record{}, fmt.Errorf("get game: %w", err)
	}
	if err := s.loadChildren(ctx, &rec); err != nil {
		return archive.Record{}, err
	}
	return rec, nil
}

// List returns the most recently ended games first.
func (s *Store) List(ctx context.Context, limit int) ([]archive.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT game_id, game_master_name, point_scale, completed, started_at, ended_at
		   FROM games
		  ORDER BY ended_at DESC, game_id ASC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	records := make([]archive.Record, 0, limit)
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan game: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	_ = rows.Close()

	for i := range records {
		if err := s.loadChildren(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (archive.Record, error) {
	var rec archive.Record
	var scale string
	var startedAt, endedAt int64
	if err := row.Scan(&rec.GameID, &rec.GameMasterName, &scale, &rec.Completed, &startedAt, &endedAt); err != nil {
		return archive.Record{}, err
	}
	rec.PointScale = game.PointScale(scale)
	rec.StartedAt = fromMillis(startedAt)
	rec.EndedAt = fromMillis(endedAt)
	return rec, nil
}

func (s *Store) loadChildren(ctx context.Context, rec *archive.Record) error {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name FROM game_players WHERE game_id = ? ORDER BY position`, rec.GameID)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	rec.PlayerNames = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan player: %w", err)
		}
		rec.PlayerNames = append(rec.PlayerNames, name)
	}
	_ = rows.Close()

	rows, err = s.sqlDB.QueryContext(ctx,
		`SELECT story_name, point_value FROM scored_rounds WHERE game_id = ? ORDER BY position`, rec.GameID)
	if err != nil {
		return fmt.Errorf("list scored rounds: %w", err)
	}
	defer rows.Close()
	rec.Scoreboard = []game.ScoredRound{}
	for rows.Next() {
		var sr game.ScoredRound
		if err := rows.Scan(&sr.StoryName, &sr.PointValue); err != nil {
			return fmt.Errorf("scan scored round: %w", err)
		}
		rec.Scoreboard = append(rec.Scoreboard, sr)
	}
	return rows.Err()
}
