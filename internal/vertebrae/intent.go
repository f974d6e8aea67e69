package vertebrae

// IntentKind is the concrete backup operation an Intent requests.
type IntentKind int

const (
	// IntentCopy copies the source file's bytes into the destination.
	// Covers both first-time creates and updates.
	IntentCopy IntentKind = iota
	// IntentDelete removes the mirrored file from the destination.
	IntentDelete
	// IntentMkdir creates a directory in the destination.
	IntentMkdir
)

// String returns a human-readable representation of the kind.
func (k IntentKind) String() string {
	switch k {
	case IntentCopy:
		return "copy"
	case IntentDelete:
		return "delete"
	case IntentMkdir:
		return "mkdir"
	default:
		return "unknown"
	}
}

// Intent is a resolved, not-yet-executed backup operation for one path.
type Intent struct {
	Kind       IntentKind
	SourcePath string // absolute source path
	DestPath   string // destination path, relative to the destination root
	Sig        Signature
}

// IntentList is an ordered queue of pending intents with at most one entry
// per source path. A newer intent for an already-pending path supersedes the
// queued one in place (last-write-wins on the operation), keeping the
// position of the first observation.
type IntentList struct {
	order   []string
	pending map[string]Intent
}

// NewIntentList creates an empty IntentList.
func NewIntentList() *IntentList {
	return &IntentList{pending: make(map[string]Intent)}
}

// Push inserts the intent, coalescing with any unexecuted intent for the
// same source path. A create followed by a delete before execution collapses
// to a single delete.
func (l *IntentList) Push(intent Intent) {
	if _, ok := l.pending[intent.SourcePath]; !ok {
		l.order = append(l.order, intent.SourcePath)
	}
	l.pending[intent.SourcePath] = intent
}

// Len returns the number of pending intents.
func (l *IntentList) Len() int {
	return len(l.pending)
}

// Drain removes and returns all pending intents in the order their paths
// were first observed.
func (l *IntentList) Drain() []Intent {
	if len(l.pending) == 0 {
		return nil
	}
	out := make([]Intent, 0, len(l.pending))
	for _, path := range l.order {
		if intent, ok := l.pending[path]; ok {
			out = append(out, intent)
		}
	}
	l.order = l.order[:0]
	clear(l.pending)
	return out
}
