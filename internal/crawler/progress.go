package crawler

import (
	"sync"
	"time"
)

// Phase names the pipeline step a run is in.
type Phase string

// Pipeline phases in execution order.
const (
	PhaseIdle        Phase = "idle"
	PhaseDiscovering Phase = "discovering"
	PhaseFetching    Phase = "fetching"
	PhaseRetrying    Phase = "retrying"
	PhaseAssembling  Phase = "assembling"
	PhaseDone        Phase = "done"
)

// ProgressSnapshot is a point-in-time copy of run progress.
type ProgressSnapshot struct {
	RunID         string    `json:"run_id,omitempty"`
	Phase         Phase     `json:"phase"`
	MoviesTotal   int       `json:"movies_total"`
	MoviesDone    int       `json:"movies_done"`
	CriticsTotal  int       `json:"critics_total"`
	CriticsDone   int       `json:"critics_done"`
	CriticsFailed int       `json:"critics_failed"`
	RetryTotal    int       `json:"retry_total"`
	RetryDone     int       `json:"retry_done"`
	FailedTwice   int       `json:"failed_twice"`
	RawReviews    int       `json:"raw_reviews"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Progress tracks the state of the current run for status reporting. The
// zero value is ready to use; a nil *Progress ignores updates.
type Progress struct {
	mu   sync.RWMutex
	snap ProgressSnapshot
}

// NewProgress constructs an idle Progress.
func NewProgress() *Progress {
	return &Progress{snap: ProgressSnapshot{Phase: PhaseIdle}}
}

// Snapshot returns a copy of the current progress.
func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{Phase: PhaseIdle}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := p.snap
	if snap.Phase == "" {
		snap.Phase = PhaseIdle
	}
	return snap
}

func (p *Progress) update(now time.Time, fn func(*ProgressSnapshot)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.snap)
	p.snap.UpdatedAt = now
}
