package vertebrae

import (
	"errors"
	"fmt"
	"os"
	"sort"
)

// DriftState classifies one path's standing against the journal.
type DriftState int

const (
	// DriftInSync means the file's signature matches its journal entry.
	DriftInSync DriftState = iota
	// DriftModified means the file exists but its signature differs.
	DriftModified
	// DriftUntracked means the file exists with no journal entry.
	DriftUntracked
	// DriftMissing means a journal entry's source file is gone from disk.
	DriftMissing
)

// String returns a human-readable representation of the drift state.
func (s DriftState) String() string {
	switch s {
	case DriftInSync:
		return "in-sync"
	case DriftModified:
		return "modified"
	case DriftUntracked:
		return "untracked"
	case DriftMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// FileStatus is one path's drift report.
type FileStatus struct {
	Path  string
	State DriftState
	Dest  string
}

// Drift walks the watched roots and reports every path's standing against
// the journal without mutating anything. It is the read-only counterpart of
// Rescan, for the status command.
func Drift(watchRoots []string, fsmgr FilesystemManager, journal *Journal) ([]FileStatus, error) {
	var statuses []FileStatus
	seen := make(map[string]struct{})

	for _, root := range watchRoots {
		files, err := fsmgr.WalkFiles(root)
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
		for _, f := range files {
			seen[f.Path] = struct{}{}
			entry, tracked := journal.Get(f.Path)
			switch {
			case !tracked:
				statuses = append(statuses, FileStatus{Path: f.Path, State: DriftUntracked})
			case entry.Signature() != f.Sig:
				statuses = append(statuses, FileStatus{Path: f.Path, State: DriftModified, Dest: entry.Dest})
			default:
				statuses = append(statuses, FileStatus{Path: f.Path, State: DriftInSync, Dest: entry.Dest})
			}
		}
	}

	for path, entry := range journal.Entries() {
		if _, ok := seen[path]; ok {
			continue
		}
		if !underAnyRoot(watchRoots, path) {
			continue
		}
		if _, err := fsmgr.Stat(path); err != nil && errors.Is(err, os.ErrNotExist) {
			statuses = append(statuses, FileStatus{Path: path, State: DriftMissing, Dest: entry.Dest})
		}
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Path < statuses[j].Path })
	return statuses, nil
}
