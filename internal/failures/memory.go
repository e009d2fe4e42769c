package failures

import (
	"context"
	"fmt"
	"sync"
)

// MemoryTracker is an in-process Tracker.
type MemoryTracker struct {
	mu      sync.Mutex
	lines   []string
	drained bool
}

// NewMemoryTracker constructs an empty MemoryTracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{}
}

// Record implements Tracker.
func (t *MemoryTracker) Record(_ context.Context, criticID string) error {
	id, err := validID(criticID)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, id)
	return nil
}

// Drain implements Tracker.
func (t *MemoryTracker) Drain(_ context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.drained {
		return nil, ErrDrained
	}
	ids := lastSegment(t.lines)
	t.lines = append(t.lines, "")
	t.drained = true
	return ids, nil
}

// Reset implements Tracker.
func (t *MemoryTracker) Reset(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
	t.drained = false
	return nil
}

// Lines returns a copy of the log, with separators as empty strings.
func (t *MemoryTracker) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}
