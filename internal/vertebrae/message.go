package vertebrae

import (
	"path/filepath"
	"strings"
	"time"
)

// ChangeEvent is a raw filesystem change notification from the watcher
// boundary: an affected path and what happened to it.
type ChangeEvent struct {
	Path string
	Kind ChangeKind
}

// WorkerMessageKind discriminates WorkerMessage variants. Only the
// filesystem-event variant is exercised today; the union is open for future
// control messages.
type WorkerMessageKind int

const (
	// MessageFilesystemEvent carries a raw filesystem change notification.
	MessageFilesystemEvent WorkerMessageKind = iota
)

// WorkerMessage is the tagged union processed by the Worker.
type WorkerMessage struct {
	Kind   WorkerMessageKind
	Change ChangeEvent
}

// NewFilesystemEventMessage wraps a change event in a WorkerMessage.
func NewFilesystemEventMessage(ev ChangeEvent) WorkerMessage {
	return WorkerMessage{Kind: MessageFilesystemEvent, Change: ev}
}

// MessageHandler classifies inbound worker messages into semantic
// file-change observations and forwards them to the IntentHandler. It drops
// events for paths outside every watched root (the watcher boundary is not
// trusted), drops ignored paths, and coalesces bursts of identical
// notifications for the same path within a short window.
type MessageHandler struct {
	watchRoots []string
	fsmgr      FilesystemManager
	intents    *IntentHandler
	clock      Clock
	window     time.Duration
	recent     map[string]recentChange
	logger     Logger
}

type recentChange struct {
	kind ChangeKind
	at   time.Time
}

// DefaultCoalesceWindow bounds how long two identical notifications for the
// same path are treated as one burst.
const DefaultCoalesceWindow = 100 * time.Millisecond

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(watchRoots []string, fsmgr FilesystemManager, intents *IntentHandler, clock Clock, window time.Duration, logger Logger) *MessageHandler {
	if window <= 0 {
		window = DefaultCoalesceWindow
	}
	return &MessageHandler{
		watchRoots: watchRoots,
		fsmgr:      fsmgr,
		intents:    intents,
		clock:      clock,
		window:     window,
		recent:     make(map[string]recentChange),
		logger:     logger,
	}
}

// Handle processes one worker message. Unknown message kinds are reserved
// for future extension and are no-ops.
func (m *MessageHandler) Handle(msg WorkerMessage) error {
	if msg.Kind != MessageFilesystemEvent {
		return nil
	}
	ev := msg.Change

	root, ok := m.containingRoot(ev.Path)
	if !ok {
		m.logger.Debug("dropping event outside watched roots", "path", ev.Path)
		return nil
	}
	if m.fsmgr.IsIgnored(ev.Path, root) {
		m.logger.Debug("dropping ignored path", "path", ev.Path)
		return nil
	}

	now := m.clock.Now()
	if prev, seen := m.recent[ev.Path]; seen && prev.kind == ev.Kind && now.Sub(prev.at) < m.window {
		m.logger.Debug("coalescing duplicate event", "path", ev.Path, "kind", ev.Kind.String())
		return nil
	}
	m.recent[ev.Path] = recentChange{kind: ev.Kind, at: now}
	m.pruneRecent(now)

	return m.intents.HandleChange(ev.Path, ev.Kind)
}

// containingRoot returns the watched root that contains path.
func (m *MessageHandler) containingRoot(path string) (string, bool) {
	for _, root := range m.watchRoots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return root, true
	}
	return "", false
}

// pruneRecent drops stale burst-tracking state so the map does not grow with
// every path ever seen.
func (m *MessageHandler) pruneRecent(now time.Time) {
	if len(m.recent) < 1024 {
		return
	}
	for path, rc := range m.recent {
		if now.Sub(rc.at) >= m.window {
			delete(m.recent, path)
		}
	}
}
