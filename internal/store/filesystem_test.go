package store_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"vertebrae-go/internal/store"
)

func newTestStore(t *testing.T) (*store.FileSystemStore, string) {
	t.Helper()
	root := t.TempDir()
	s, err := store.NewFileSystemStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	return s, root
}

func TestNewFileSystemStore(t *testing.T) {
	t.Run("accepts an existing directory", func(t *testing.T) {
		if _, err := store.NewFileSystemStore(t.TempDir()); err != nil {
			t.Errorf("NewFileSystemStore() error = %v", err)
		}
	})

	t.Run("rejects a missing root", func(t *testing.T) {
		_, err := store.NewFileSystemStore(filepath.Join(t.TempDir(), "nope"))
		if err == nil {
			t.Error("NewFileSystemStore() should fail on a missing root")
		}
	})

	t.Run("rejects a file as root", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := store.NewFileSystemStore(f); err == nil {
			t.Error("NewFileSystemStore() should fail when the root is a file")
		}
	})
}

func TestFileSystemStore_Put(t *testing.T) {
	t.Run("writes content", func(t *testing.T) {
		s, root := newTestStore(t)

		if err := s.Put("docs/a.txt", bytes.NewReader([]byte("hello"))); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		data, err := os.ReadFile(filepath.Join(root, "docs", "a.txt"))
		if err != nil {
			t.Fatalf("reading mirrored file: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("content = %q, want %q", data, "hello")
		}
	})

	t.Run("overwrites existing content", func(t *testing.T) {
		s, root := newTestStore(t)

		if err := s.Put("a.txt", bytes.NewReader([]byte("v1"))); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := s.Put("a.txt", bytes.NewReader([]byte("v2"))); err != nil {
			t.Fatalf("second Put() error = %v", err)
		}

		data, _ := os.ReadFile(filepath.Join(root, "a.txt"))
		if string(data) != "v2" {
			t.Errorf("content = %q, want %q", data, "v2")
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		s, root := newTestStore(t)
		if err := s.Put("a.txt", bytes.NewReader([]byte("x"))); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			t.Fatalf("reading root: %v", err)
		}
		if len(entries) != 1 || entries[0].Name() != "a.txt" {
			t.Errorf("unexpected entries in root: %v", entries)
		}
	})

	t.Run("rejects escaping paths", func(t *testing.T) {
		s, _ := newTestStore(t)
		for _, bad := range []string{"../escape.txt", "/abs.txt", "..", "."} {
			if err := s.Put(bad, bytes.NewReader(nil)); err == nil {
				t.Errorf("Put(%q) should fail", bad)
			}
		}
	})
}

func TestFileSystemStore_Remove(t *testing.T) {
	t.Run("removes an existing file", func(t *testing.T) {
		s, root := newTestStore(t)
		if err := s.Put("a.txt", bytes.NewReader([]byte("x"))); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		if err := s.Remove("a.txt"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "a.txt")); !os.IsNotExist(err) {
			t.Error("file should be gone")
		}
	})

	t.Run("missing file is a no-op", func(t *testing.T) {
		s, _ := newTestStore(t)
		if err := s.Remove("never-existed.txt"); err != nil {
			t.Errorf("Remove() of a missing file = %v, want nil", err)
		}
	})
}

func TestFileSystemStore_MkdirAll(t *testing.T) {
	s, root := newTestStore(t)

	if err := s.MkdirAll("a/b/c"); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(root, "a", "b", "c"))
	if err != nil {
		t.Fatalf("stat created dir: %v", err)
	}
	if !info.IsDir() {
		t.Error("created path is not a directory")
	}
}
