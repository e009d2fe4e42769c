package failures

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// FileTracker keeps the failure log as a newline-separated file. Writers are
// serialized in-process by a mutex and across processes by an advisory lock
// on "<path>.lock".
type FileTracker struct {
	mu      sync.Mutex
	path    string
	lock    *flock.Flock
	drained bool
}

// NewFileTracker opens (without truncating) the failure log at path.
func NewFileTracker(path string) (*FileTracker, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("failure log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create failure log dir: %w", err)
	}
	return &FileTracker{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the log location.
func (t *FileTracker) Path() string {
	return t.path
}

// Record implements Tracker.
func (t *FileTracker) Record(ctx context.Context, criticID string) error {
	id, err := validID(criticID)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return t.withLock(ctx, func() error {
		return appendToFile(t.path, id+"\n")
	})
}

// Drain implements Tracker.
func (t *FileTracker) Drain(ctx context.Context) ([]string, error) {
	var ids []string
	err := t.withLock(ctx, func() error {
		if t.drained {
			return ErrDrained
		}
		data, err := os.ReadFile(t.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read failure log: %w", err)
		}
		content := string(data)
		ids = lastSegment(strings.Split(strings.TrimSuffix(content, "\n"), "\n"))

		separator := "\n"
		if content != "" && !strings.HasSuffix(content, "\n") {
			separator = "\n\n"
		}
		if err := appendToFile(t.path, separator); err != nil {
			return err
		}
		t.drained = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Reset implements Tracker.
func (t *FileTracker) Reset(ctx context.Context) error {
	return t.withLock(ctx, func() error {
		if err := os.WriteFile(t.path, nil, 0o600); err != nil {
			return fmt.Errorf("truncate failure log: %w", err)
		}
		t.drained = false
		return nil
	})
}

// Close releases the advisory lock file handle.
func (t *FileTracker) Close() error {
	if err := t.lock.Close(); err != nil {
		return fmt.Errorf("close failure log lock: %w", err)
	}
	return nil
}

func (t *FileTracker) withLock(ctx context.Context, fn func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok, err := t.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock failure log: %w", err)
	}
	if !ok {
		return fmt.Errorf("lock failure log: %s is held", t.lock.Path())
	}
	defer func() {
		_ = t.lock.Unlock()
	}()
	return fn()
}

func appendToFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open failure log: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("append failure log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close failure log: %w", err)
	}
	return nil
}
