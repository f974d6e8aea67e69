package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"vertebrae-go/internal/vertebrae"
)

// OSFilesystemManager is the real filesystem implementation of
// FilesystemManager. It performs actual filesystem operations using the os
// package and applies ignore rules from config plus built-in patterns.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a filesystem manager that operates on the
// real filesystem. ignorePatterns come from config; the journal snapshot is
// always ignored.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{
		ignore: NewIgnoreMatcher(ignorePatterns),
	}
}

// Stat returns current info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// WalkFiles discovers regular, non-ignored files under root with their
// signatures.
func (m *OSFilesystemManager) WalkFiles(root string) ([]vertebrae.FileEntry, error) {
	var entries []vertebrae.FileEntry

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if m.IsIgnored(p, root) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		entries = append(entries, vertebrae.FileEntry{
			Path: p,
			Sig:  vertebrae.SignatureOf(info),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return entries, nil
}

// IsIgnored reports whether the path is excluded by ignore rules, evaluated
// relative to the given watched root.
func (m *OSFilesystemManager) IsIgnored(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return m.ignore.Match(rel)
}

// Compile-time check that OSFilesystemManager implements the interface.
var _ vertebrae.FilesystemManager = (*OSFilesystemManager)(nil)
