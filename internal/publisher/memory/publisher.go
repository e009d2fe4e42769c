// Package memory keeps run summaries in process so the API can report the
// most recent harvest.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
)

// Publisher stores published run summaries for inspection.
type Publisher struct {
	mu        sync.RWMutex
	summaries []crawler.RunSummary
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Notify records the summary and returns a pseudo ID.
func (p *Publisher) Notify(_ context.Context, summary crawler.RunSummary) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, summary)
	return fmt.Sprintf("memory-%d", len(p.summaries)), nil
}

// Summaries returns the recorded summaries, oldest first.
func (p *Publisher) Summaries() []crawler.RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.RunSummary, len(p.summaries))
	copy(out, p.summaries)
	return out
}

// Last returns the most recent summary.
func (p *Publisher) Last() (crawler.RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.summaries) == 0 {
		return crawler.RunSummary{}, false
	}
	return p.summaries[len(p.summaries)-1], true
}
