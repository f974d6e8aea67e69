package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vertebrae-go/internal/vertebrae"
)

// FileSystemStore mirrors files under a destination root on the local
// filesystem. Writes are atomic (temp file + rename) so a crash mid-copy
// never leaves a truncated mirror file.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a store rooted at the given destination path.
// The root must already exist; refusing to create it catches configuration
// typos before anything is mirrored.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	s := &FileSystemStore{root: filepath.Clean(root)}
	if err := s.ValidateSetup(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the destination root path.
func (s *FileSystemStore) Root() string { return s.root }

// Put writes content at the relative path, creating parent directories as
// needed. The write goes to a temp file in the same directory and is
// committed with a rename.
func (s *FileSystemStore) Put(relPath string, r io.Reader) error {
	destPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("committing file: %w", err)
	}
	committed = true
	return nil
}

// Remove deletes the file at the relative path. A path that does not exist
// is not an error.
func (s *FileSystemStore) Remove(relPath string) error {
	destPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(destPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

// MkdirAll creates a directory (and parents) at the relative path.
func (s *FileSystemStore) MkdirAll(relPath string) error {
	destPath, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destPath, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the destination root is an existing directory.
func (s *FileSystemStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("destination not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination is not a directory: %s", s.root)
	}
	return nil
}

// resolve joins the relative path onto the root, rejecting anything that
// would escape it.
func (s *FileSystemStore) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if cleaned == "." || cleaned == ".." || filepath.IsAbs(cleaned) ||
		strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid destination path: %s", relPath)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Compile-time check that FileSystemStore implements the Store interface.
var _ vertebrae.Store = (*FileSystemStore)(nil)
