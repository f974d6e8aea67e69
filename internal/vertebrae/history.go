package vertebrae

import "time"

// Operation is one executed backup operation, recorded for auditing.
// The Journal is the durability mechanism; the history database is an audit
// trail only, so recording failures are logged and never fatal.
type Operation struct {
	ID         int64
	RunID      string
	Kind       string // "copy", "delete", "mkdir"
	SourcePath string
	DestPath   string
	Status     string // "ok" or "error"
	Detail     string // error text when Status is "error"
	CreatedAt  time.Time
}

// HistoryDatabase provides an interface for the operation history store.
type HistoryDatabase interface {
	// RecordOperation appends an operation, assigning its ID and CreatedAt.
	RecordOperation(op *Operation) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*Operation, error)

	// Close closes the underlying store.
	Close() error
}
