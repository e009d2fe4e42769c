package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// stubFetcher serves canned pages keyed by URL and records every request.
type stubFetcher struct {
	mu     sync.Mutex
	pages  map[string]Page
	errs   map[string]error
	bodies map[string]string
	calls  []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages:  make(map[string]Page),
		errs:   make(map[string]error),
		bodies: make(map[string]string),
	}
}

func (f *stubFetcher) body(url, body string) *stubFetcher {
	f.bodies[url] = body
	return f
}

func (f *stubFetcher) fail(url string, err error) *stubFetcher {
	f.errs[url] = err
	return f
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return Page{}, err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	if body, ok := f.bodies[url]; ok {
		return Page{URL: url, StatusCode: 200, Body: []byte(body)}, nil
	}
	return Page{}, fmt.Errorf("no stub for %s: %w", url, ErrTransport)
}

func (f *stubFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// stubListingParser reads a tiny line format:
//
//	pages: 3
//	row: /critic/jane
//	row:
//
// "row:" with no value is a row without an author link.
type stubListingParser struct{}

func (stubListingParser) Parse(page Page) (ListingReader, error) {
	reader := &stubListing{pages: -1}
	for _, line := range strings.Split(string(page.Body), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "pages:"):
			_, err := fmt.Sscanf(strings.TrimPrefix(line, "pages:"), "%d", &reader.pages)
			if err != nil {
				reader.pages = -2
			}
		case strings.HasPrefix(line, "row:"):
			href := strings.TrimSpace(strings.TrimPrefix(line, "row:"))
			reader.rows = append(reader.rows, stubRow{href: href, ok: href != ""})
		}
	}
	return reader, nil
}

type stubListing struct {
	pages int
	rows  []ListingRow
}

func (l *stubListing) PageCount() (int, error) {
	if l.pages < 1 {
		return 0, fmt.Errorf("no indicator: %w", ErrStructure)
	}
	return l.pages, nil
}

func (l *stubListing) ReviewRows() []ListingRow {
	return l.rows
}

type stubRow struct {
	href string
	ok   bool
}

func (r stubRow) AuthorLink() (string, bool) {
	return r.href, r.ok
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type sequenceIDs struct {
	mu  sync.Mutex
	n   int
	err error
}

func (s *sequenceIDs) NewID() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("run-%d", s.n), nil
}
