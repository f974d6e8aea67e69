package vertebrae

import "io"

// Store provides an interface for destination mirror backends.
// Paths are relative to the destination root, using forward slashes.
// Put and Remove are the only mutations the pipeline performs; both must be
// idempotent so a replayed intent converges instead of failing.
type Store interface {
	// Put writes the content read from r at the given relative path,
	// creating parent directories as needed. An existing file at the path
	// is replaced atomically.
	Put(relPath string, r io.Reader) error

	// Remove deletes the file at the given relative path.
	// Removing a path that does not exist is not an error.
	Remove(relPath string) error

	// MkdirAll creates a directory (and parents) at the relative path.
	// Backends without directories treat this as a no-op.
	MkdirAll(relPath string) error

	// ValidateSetup verifies the destination is accessible and properly
	// configured. For the filesystem backend this enforces that the
	// destination root is an existing directory.
	ValidateSetup() error
}
