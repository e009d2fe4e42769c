package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a single page for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Waiter enforces the crawl rate before an outbound request.
type Waiter interface {
	Wait(ctx context.Context) error
}

// ListingRow is a single review entry on a movie's review-listing page.
type ListingRow interface {
	// AuthorLink returns the target of the entry's author link.
	AuthorLink() (string, bool)
}

// ListingReader exposes the parts of a review-listing page the discovery step needs.
type ListingReader interface {
	PageCount() (int, error)
	ReviewRows() []ListingRow
}

// ListingParser turns a fetched page into a ListingReader.
type ListingParser interface {
	Parse(page Page) (ListingReader, error)
}

// FailureTracker records critics whose retrieval failed and hands them back
// once for the retry pass.
type FailureTracker interface {
	Record(ctx context.Context, criticID string) error
	Drain(ctx context.Context) ([]string, error)
	Reset(ctx context.Context) error
}

// Assembler turns raw reviews into dataset rows.
type Assembler interface {
	Assemble(raw []RawReview) []Review
}

// CriticListWriter persists the deduplicated critic list.
type CriticListWriter interface {
	WriteCritics(ctx context.Context, criticIDs []string) error
}

// DatasetSink persists the final dataset and returns where it was written.
type DatasetSink interface {
	WriteDataset(ctx context.Context, runID string, reviews []Review) (string, error)
}

// Notifier announces a finished run (Pub/Sub or similar).
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
