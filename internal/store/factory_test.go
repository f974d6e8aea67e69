package store_test

import (
	"context"
	"testing"

	"vertebrae-go/internal/config"
	"vertebrae-go/internal/store"
)

func TestNewStoreFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to filesystem", func(t *testing.T) {
		s, err := store.NewStoreFromConfig(ctx, config.StoreConfig{}, t.TempDir())
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		if _, ok := s.(*store.FileSystemStore); !ok {
			t.Errorf("store type = %T, want *FileSystemStore", s)
		}
	})

	t.Run("filesystem requires destination", func(t *testing.T) {
		_, err := store.NewStoreFromConfig(ctx, config.StoreConfig{Type: "filesystem"}, "")
		if err == nil {
			t.Error("expected error for empty destination")
		}
	})

	t.Run("memory", func(t *testing.T) {
		s, err := store.NewStoreFromConfig(ctx, config.StoreConfig{Type: "memory"}, "")
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		if _, ok := s.(*store.MemoryStore); !ok {
			t.Errorf("store type = %T, want *MemoryStore", s)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := store.NewStoreFromConfig(ctx, config.StoreConfig{Type: "ftp"}, "")
		if err == nil {
			t.Error("expected error for unknown store type")
		}
	})
}
