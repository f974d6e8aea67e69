package store

import (
	"fmt"
	"io"
	"path"
	"sync"

	"vertebrae-go/internal/vertebrae"
)

// MemoryStore is an in-memory Store implementation for testing.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

// Put stores content at the relative path.
func (s *MemoryStore) Put(relPath string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path.Clean(relPath)] = data
	return nil
}

// Remove deletes the file at the relative path; missing paths are a no-op.
func (s *MemoryStore) Remove(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path.Clean(relPath))
	return nil
}

// MkdirAll records the directory.
func (s *MemoryStore) MkdirAll(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[path.Clean(relPath)] = true
	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (s *MemoryStore) ValidateSetup() error { return nil }

// Get returns the stored content for a path, for test assertions.
func (s *MemoryStore) Get(relPath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path.Clean(relPath)]
	return data, ok
}

// HasDir reports whether MkdirAll was called for the path.
func (s *MemoryStore) HasDir(relPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[path.Clean(relPath)]
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Compile-time check that MemoryStore implements the Store interface.
var _ vertebrae.Store = (*MemoryStore)(nil)
