// Package failures tracks critics whose feed retrieval failed so the run can
// retry them once.
package failures

import (
	"context"
	"errors"
	"strings"
)

// ErrDrained is returned by Drain after the tracker has already been drained.
var ErrDrained = errors.New("failure log already drained")

// Tracker records failed critic ids and hands them back once.
type Tracker interface {
	// Record appends a critic id to the log.
	Record(ctx context.Context, criticID string) error
	// Drain returns the ids recorded since the last separator, in first-seen
	// order, then appends a separator. It may be called once per tracker.
	Drain(ctx context.Context) ([]string, error)
	// Reset empties the log and re-arms Drain.
	Reset(ctx context.Context) error
}

func validID(criticID string) (string, error) {
	id := strings.TrimSpace(criticID)
	if id == "" {
		return "", errors.New("critic id is empty")
	}
	if strings.ContainsAny(id, "\r\n") {
		return "", errors.New("critic id contains a line break")
	}
	return id, nil
}

// lastSegment returns the unique ids after the final blank separator line.
func lastSegment(lines []string) []string {
	var (
		ids  []string
		seen map[string]struct{}
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			ids, seen = nil, nil
			continue
		}
		if seen == nil {
			seen = make(map[string]struct{})
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		ids = append(ids, line)
	}
	return ids
}
