package vertebrae

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JournalFileName is the fixed name of the journal snapshot inside the
// backup destination.
const JournalFileName = ".vertebrae.journal.json"

// JournalEntry is the last successfully mirrored state of one source path.
type JournalEntry struct {
	Size    int64  `json:"size"`
	MtimeNS int64  `json:"mtime_ns"`
	Dest    string `json:"dest"`
}

// Signature returns the entry's change-detection signature.
func (e JournalEntry) Signature() Signature {
	return Signature{Size: e.Size, MtimeNS: e.MtimeNS}
}

// journalSnapshot is the on-disk JSON shape of the journal.
type journalSnapshot struct {
	Entries map[string]JournalEntry `json:"entries"`
}

// Journal maps each tracked source path to its last backed-up signature and
// destination path. It is mutated in memory by the IntentHandler and
// persisted explicitly via Flush; the snapshot file is the sole durability
// mechanism, so unflushed mutations are lost on an unclean kill.
//
// The journal is shared by the event pipeline, the rescan pass and the flush
// timer; a reader/writer lock mediates access.
type Journal struct {
	mu      sync.RWMutex
	path    string
	entries map[string]JournalEntry
	dirty   bool
}

// OpenJournal reads the snapshot file at path, or starts empty if the file
// does not exist. A snapshot that exists but cannot be read or parsed is an
// error: the daemon must not silently discard backup history.
func OpenJournal(path string) (*Journal, error) {
	j := &Journal{
		path:    path,
		entries: make(map[string]JournalEntry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return j, nil
		}
		return nil, fmt.Errorf("reading journal snapshot: %w", err)
	}

	var snap journalSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing journal snapshot %s: %w", path, err)
	}
	if snap.Entries != nil {
		j.entries = snap.Entries
	}
	return j, nil
}

// IsDirty reports whether any entry changed since the last successful flush.
func (j *Journal) IsDirty() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.dirty
}

// Get returns the entry for a source path.
func (j *Journal) Get(path string) (JournalEntry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	e, ok := j.entries[path]
	return e, ok
}

// Len returns the number of tracked paths.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// Entries returns a copy of the tracked path mapping.
func (j *Journal) Entries() map[string]JournalEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make(map[string]JournalEntry, len(j.entries))
	for p, e := range j.entries {
		out[p] = e
	}
	return out
}

// Upsert inserts or replaces the entry for a source path and marks the
// journal dirty.
func (j *Journal) Upsert(path string, entry JournalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[path] = entry
	j.dirty = true
}

// Remove deletes the entry for a source path. Removing an untracked path is
// a no-op and does not mark the journal dirty.
func (j *Journal) Remove(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.entries[path]; !ok {
		return
	}
	delete(j.entries, path)
	j.dirty = true
}

// Flush serializes the full entry mapping to the snapshot file and clears
// the dirty flag. The write is atomic (temp file + rename) so a crash
// mid-write leaves the previous snapshot intact. Returns the number of
// entries written.
func (j *Journal) Flush() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.MarshalIndent(journalSnapshot{Entries: j.entries}, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encoding journal: %w", err)
	}

	dir := filepath.Dir(j.path)
	tmp, err := os.CreateTemp(dir, ".journal-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating journal temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing journal temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing journal temp file: %w", err)
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return 0, fmt.Errorf("committing journal snapshot: %w", err)
	}
	committed = true

	j.dirty = false
	return len(j.entries), nil
}
