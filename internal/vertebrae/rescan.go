package vertebrae

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Rescan reconciles the live filesystem with journal state. It walks every
// watched root, synthesizes create/update changes for files the journal is
// missing or has stale signatures for, and delete changes for journal
// entries whose source files are gone, routing each through the same
// IntentHandler as live events.
//
// It is idempotent and runs outside the worker's message queue: at startup
// (to catch drift accumulated while the daemon was down) and on a timer.
// Per-path discrepancies that fail to apply are absorbed by the
// IntentHandler; only a failure to walk a root is returned.
func Rescan(watchRoots []string, fsmgr FilesystemManager, journal *Journal, intents *IntentHandler, logger Logger) error {
	seen := make(map[string]struct{})

	for _, root := range watchRoots {
		files, err := fsmgr.WalkFiles(root)
		if err != nil {
			return fmt.Errorf("walking %s: %w", root, err)
		}
		for _, f := range files {
			seen[f.Path] = struct{}{}
			entry, tracked := journal.Get(f.Path)
			switch {
			case !tracked:
				logger.Debug("rescan: untracked file", "path", f.Path)
				handleDiscrepancy(intents, logger, f.Path, ChangeCreate)
			case entry.Signature() != f.Sig:
				logger.Debug("rescan: signature mismatch", "path", f.Path)
				handleDiscrepancy(intents, logger, f.Path, ChangeModify)
			}
		}
	}

	for path := range journal.Entries() {
		if _, ok := seen[path]; ok {
			continue
		}
		if !underAnyRoot(watchRoots, path) {
			// Entry for a root no longer in the config; leave it alone.
			logger.Debug("rescan: entry outside current watch roots", "path", path)
			continue
		}
		if _, err := fsmgr.Stat(path); err == nil || !errors.Is(err, os.ErrNotExist) {
			continue
		}
		logger.Debug("rescan: source file gone", "path", path)
		handleDiscrepancy(intents, logger, path, ChangeRemove)
	}

	return nil
}

func handleDiscrepancy(intents *IntentHandler, logger Logger, path string, kind ChangeKind) {
	if err := intents.HandleChange(path, kind); err != nil {
		logger.Error("rescan: applying change failed", "path", path, "kind", kind.String(), "error", err)
	}
}

func underAnyRoot(roots []string, path string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return true
	}
	return false
}
