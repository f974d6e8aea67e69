package vertebrae

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrOutsideWatchedRoots is returned when a change is reported for a path
// that no configured watch root contains.
var ErrOutsideWatchedRoots = errors.New("path is outside all watched roots")

// ChangeKind classifies a semantic file-change observation.
type ChangeKind int

const (
	ChangeCreate ChangeKind = iota
	ChangeModify
	ChangeRemove
	ChangeRename
)

// String returns a human-readable representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreate:
		return "create"
	case ChangeModify:
		return "modify"
	case ChangeRemove:
		return "remove"
	case ChangeRename:
		return "rename"
	default:
		return "unknown"
	}
}

// IntentHandler turns file-change observations into intents, drains them
// through the FileHandler, and records completions in the Journal. Both the
// live event path (via Worker/MessageHandler) and the rescan path converge
// here, so create/update/delete semantics are defined in exactly one place.
//
// A mutex serializes the queue-drain-record cycle: the worker loop and a
// concurrent rescan may both call HandleChange for the same path, and the
// per-path at-most-one-in-flight guarantee must hold across both.
type IntentHandler struct {
	mu         sync.Mutex
	watchRoots []string
	list       *IntentList
	files      *FileHandler
	journal    *Journal
	history    HistoryDatabase // nil disables recording
	fsmgr      FilesystemManager
	runID      string
	logger     Logger
}

// NewIntentHandler creates an IntentHandler. history may be nil.
func NewIntentHandler(watchRoots []string, list *IntentList, files *FileHandler, journal *Journal, fsmgr FilesystemManager, history HistoryDatabase, runID string, logger Logger) *IntentHandler {
	return &IntentHandler{
		watchRoots: watchRoots,
		list:       list,
		files:      files,
		journal:    journal,
		history:    history,
		fsmgr:      fsmgr,
		runID:      runID,
		logger:     logger,
	}
}

// HandleChange resolves the destination for the changed source path, builds
// an intent, and synchronously drains the pending queue through the
// FileHandler, recording each successful completion in the Journal.
//
// Failures of individual operations are logged and absorbed: the journal
// entry is left untouched so the path stays out of sync until a later change
// event or rescan retries it. Only a change that cannot be resolved at all
// returns an error.
func (h *IntentHandler) HandleChange(sourcePath string, kind ChangeKind) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	intent, ok, err := h.resolve(sourcePath, kind)
	if err != nil {
		return err
	}
	if ok {
		h.list.Push(intent)
	}

	for _, pending := range h.list.Drain() {
		h.execute(pending)
	}
	return nil
}

// resolve maps a change observation onto a concrete intent.
// Returns ok=false when the change is a no-op: the path is already in sync,
// or a delete was observed for a path that was never mirrored.
func (h *IntentHandler) resolve(sourcePath string, kind ChangeKind) (Intent, bool, error) {
	destPath, err := h.resolveDest(sourcePath)
	if err != nil {
		return Intent{}, false, err
	}

	switch kind {
	case ChangeRemove, ChangeRename:
		return h.resolveDelete(sourcePath, destPath)
	case ChangeCreate, ChangeModify:
		info, err := h.fsmgr.Stat(sourcePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Gone before we got to it; fall through to delete.
				return h.resolveDelete(sourcePath, destPath)
			}
			h.logger.Warn("cannot stat changed path", "path", sourcePath, "error", err)
			return Intent{}, false, nil
		}
		if info.IsDir() {
			return Intent{Kind: IntentMkdir, SourcePath: sourcePath, DestPath: destPath}, true, nil
		}
		sig := SignatureOf(info)
		if entry, tracked := h.journal.Get(sourcePath); tracked && entry.Signature() == sig {
			// Already mirrored at this exact signature: applying the same
			// resolved change twice is a no-op the second time.
			return Intent{}, false, nil
		}
		return Intent{Kind: IntentCopy, SourcePath: sourcePath, DestPath: destPath, Sig: sig}, true, nil
	default:
		return Intent{}, false, fmt.Errorf("unknown change kind %d", kind)
	}
}

func (h *IntentHandler) resolveDelete(sourcePath, destPath string) (Intent, bool, error) {
	if _, tracked := h.journal.Get(sourcePath); !tracked {
		return Intent{}, false, nil
	}
	return Intent{Kind: IntentDelete, SourcePath: sourcePath, DestPath: destPath}, true, nil
}

// resolveDest mirrors the source path's position under its watch root into
// the destination root, producing a slash-separated relative path.
func (h *IntentHandler) resolveDest(sourcePath string) (string, error) {
	for _, root := range h.watchRoots {
		rel, err := filepath.Rel(root, sourcePath)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return filepath.ToSlash(rel), nil
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideWatchedRoots, sourcePath)
}

// execute runs one intent through the FileHandler and, on success, commits
// the outcome to the journal. Do the work, then record the work: a crash
// between the two leaves the journal stale, never inconsistent.
func (h *IntentHandler) execute(intent Intent) {
	if err := h.files.Execute(intent); err != nil {
		h.logger.Error("backup operation failed",
			"op", intent.Kind.String(), "source", intent.SourcePath, "dest", intent.DestPath, "error", err)
		h.record(intent, err)
		return
	}

	switch intent.Kind {
	case IntentCopy:
		h.journal.Upsert(intent.SourcePath, JournalEntry{
			Size:    intent.Sig.Size,
			MtimeNS: intent.Sig.MtimeNS,
			Dest:    intent.DestPath,
		})
	case IntentDelete:
		h.journal.Remove(intent.SourcePath)
	}
	// IntentMkdir leaves no journal entry: directories carry no content to
	// reconcile and vanish with their files.

	h.logger.Info("backup operation complete",
		"op", intent.Kind.String(), "source", intent.SourcePath, "dest", intent.DestPath)
	h.record(intent, nil)
}

// record appends the operation to the history database, if one is configured.
func (h *IntentHandler) record(intent Intent, opErr error) {
	if h.history == nil {
		return
	}
	op := &Operation{
		RunID:      h.runID,
		Kind:       intent.Kind.String(),
		SourcePath: intent.SourcePath,
		DestPath:   intent.DestPath,
		Status:     "ok",
	}
	if opErr != nil {
		op.Status = "error"
		op.Detail = opErr.Error()
	}
	if err := h.history.RecordOperation(op); err != nil {
		h.logger.Warn("recording operation history failed", "error", err)
	}
}
