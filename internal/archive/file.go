package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const timeLayout = "2006-01-02 15:04:05"

// File appends a plain-text summary of each finished game to a results file.
type File struct {
	Path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Archive(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if info, err := os.Stat(f.Path); err == nil && info.Size() > 0 {
		fileExists = true
	}

	file, err := os.OpenFile(f.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(render(rec, fileExists)); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

func render(rec Record, separate bool) string {
	var sb strings.Builder
	if separate {
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("Planning Game Results - Game %s\n", rec.GameID))
	sb.WriteString(fmt.Sprintf("Game master: %s (%s)\n", rec.GameMasterName, rec.PointScale))
	sb.WriteString(fmt.Sprintf("Started: %s\n", rec.StartedAt.Format(timeLayout)))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	if len(rec.PlayerNames) > 0 {
		sb.WriteString("Players:\n")
		for _, name := range rec.PlayerNames {
			sb.WriteString(fmt.Sprintf("- %s\n", name))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Scoreboard:\n")
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	for i, sr := range rec.Scoreboard {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, sr))
	}
	sb.WriteString("\n")

	if rec.Completed {
		sb.WriteString(fmt.Sprintf("Game ended at %s\n", rec.EndedAt.Format(timeLayout)))
	} else {
		sb.WriteString(fmt.Sprintf("Game abandoned at %s\n", rec.EndedAt.Format(timeLayout)))
	}
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	return sb.String()
}
