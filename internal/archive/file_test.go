package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robertwalker/planning-game-server/internal/game"
)

func sampleRecord(id string) Record {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return Record{
		GameID:         id,
		GameMasterName: "Alice",
		PointScale:     game.Fibonacci,
		PlayerNames:    []string{"Bob", "Carol"},
		Scoreboard: []game.ScoredRound{
			{StoryName: "Login page", PointValue: "five"},
			{StoryName: "Logout", PointValue: "one"},
		},
		Completed: true,
		StartedAt: at,
		EndedAt:   at.Add(time.Hour),
	}
}

func TestFileArchiveAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.txt")
	f := NewFile(path)

	if err := f.Archive(context.Background(), sampleRecord("g1")); err != nil {
		t.Fatalf("archive g1: %v", err)
	}
	abandoned := sampleRecord("g2")
	abandoned.Completed = false
	if err := f.Archive(context.Background(), abandoned); err != nil {
		t.Fatalf("archive g2: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(b)
	for _, want := range []string{
		"Planning Game Results - Game g1\n",
		"Game master: Alice (fibonacci)\n",
		"Started: 2026-03-14 09:30:00\n",
		"- Bob\n- Carol\n",
		"1. Login page,five\n2. Logout,one\n",
		"Game ended at 2026-03-14 10:30:00\n",
		"\n\nPlanning Game Results - Game g2\n",
		"Game abandoned at 2026-03-14 10:30:00\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.HasPrefix(out, "\n") {
		t.Fatalf("expected first record without leading separator")
	}
}
