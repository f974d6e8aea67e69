package vertebrae

import (
	"io"
	"io/fs"
)

// Signature is the change-detection fingerprint for a source file: size plus
// modification time in Unix nanoseconds. Two files with equal signatures are
// treated as unchanged; a same-size write that preserves the mtime is not
// detected, which is the accepted tradeoff of a stat-based scheme.
type Signature struct {
	Size    int64
	MtimeNS int64
}

// SignatureOf builds a Signature from stat info.
func SignatureOf(info fs.FileInfo) Signature {
	return Signature{
		Size:    info.Size(),
		MtimeNS: info.ModTime().UnixNano(),
	}
}

// FileEntry is one regular file found by a tree walk, with its signature.
type FileEntry struct {
	Path string
	Sig  Signature
}

// FilesystemManager provides an interface for source-tree access.
// It abstracts file access to enable testing without touching the real
// filesystem. It reads the watched source trees only; destination writes go
// through Store.
type FilesystemManager interface {
	// Stat returns current info for a path.
	Stat(path string) (fs.FileInfo, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// WalkFiles returns every regular, non-ignored file under root with its
	// signature. Directories and special files are skipped.
	WalkFiles(root string) ([]FileEntry, error)

	// IsIgnored reports whether the path is excluded by ignore rules,
	// evaluated relative to the given watched root.
	IsIgnored(path string, root string) bool
}
