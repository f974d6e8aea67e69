package database

import (
	"fmt"
	"path/filepath"

	"vertebrae-go/internal/config"
	"vertebrae-go/internal/vertebrae"
)

// NewHistoryFromConfig creates a HistoryDatabase based on the history config
// type. A "none" type returns nil; callers treat a nil history as disabled.
func NewHistoryFromConfig(cfg config.HistoryConfig, stateDir string, clock vertebrae.Clock) (vertebrae.HistoryDatabase, error) {
	switch cfg.Type {
	case "sqlite", "":
		if stateDir == "" {
			return nil, fmt.Errorf("state_dir required for sqlite history")
		}
		dbPath := filepath.Join(stateDir, "history.db")
		return NewSQLiteDatabase(dbPath, clock)
	case "memory":
		return NewSQLiteDatabase(":memory:", clock)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}
