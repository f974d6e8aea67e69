package testutil

import (
	"sync"

	"vertebrae-go/internal/vertebrae"
)

// MemoryHistory is a HistoryDatabase that records operations in a slice.
// Useful when a test only needs to inspect what was recorded.
type MemoryHistory struct {
	mu   sync.Mutex
	ops  []*vertebrae.Operation
	next int64
}

// NewMemoryHistory creates an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (h *MemoryHistory) RecordOperation(op *vertebrae.Operation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	op.ID = h.next
	cp := *op
	h.ops = append(h.ops, &cp)
	return nil
}

func (h *MemoryHistory) ListOperations(limit int) ([]*vertebrae.Operation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*vertebrae.Operation
	for i := len(h.ops) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, h.ops[i])
	}
	return out, nil
}

func (h *MemoryHistory) Close() error { return nil }

// Operations returns everything recorded so far, oldest first.
func (h *MemoryHistory) Operations() []*vertebrae.Operation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*vertebrae.Operation{}, h.ops...)
}

var _ vertebrae.HistoryDatabase = (*MemoryHistory)(nil)
