// Package testsite serves a miniature review site for end-to-end tests.
package testsite

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Feed is one critic's feed: the JSON body served for each offset.
// An empty map makes the critic feed answer 500.
type Feed map[string]string

// Site configures the listing pages and critic feeds.
type Site struct {
	// Listings maps a movie slug to the critic slugs on its review page.
	Listings map[string][]string
	// Feeds maps a critic slug to its feed.
	Feeds map[string]Feed

	mu   sync.Mutex
	hits map[string]int
}

// Start serves the site until the returned server is closed.
func (s *Site) Start() *httptest.Server {
	s.hits = make(map[string]int)
	mux := http.NewServeMux()
	mux.HandleFunc("/m/{movie}/reviews", s.listing)
	mux.HandleFunc("/napi/critic/{critic}/review/movie", s.feed)
	return httptest.NewServer(mux)
}

// Hits returns how many feed requests a critic received.
func (s *Site) Hits(critic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[critic]
}

func (s *Site) listing(w http.ResponseWriter, r *http.Request) {
	critics, ok := s.Listings[r.PathValue("movie")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	var b strings.Builder
	b.WriteString(`<html><body><span class="pageInfo">Page 1 of 1</span>`)
	for _, c := range critics {
		fmt.Fprintf(&b, `<div class="row review_table_row"><a class="unstyled bold articleLink" href="/critic/%s">%s</a></div>`, c, c)
	}
	b.WriteString(`</body></html>`)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

func (s *Site) feed(w http.ResponseWriter, r *http.Request) {
	critic := r.PathValue("critic")
	s.mu.Lock()
	s.hits[critic]++
	s.mu.Unlock()

	body, ok := s.Feeds[critic][r.URL.Query().Get("offset")]
	if !ok {
		http.Error(w, "feed unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

// Review renders a single feed entry.
func Review(movieSlug, fresh, score, quote string) string {
	return fmt.Sprintf(`{"media": {"url": "https://www.rottentomatoes.com/m/%s"}, "score": %q, "scoreOri": %q, "quote": %q}`,
		movieSlug, fresh, score, quote)
}

// Page renders a feed page body.
func Page(total int, entries ...string) string {
	return fmt.Sprintf(`{"totalCount": %d, "results": [%s]}`, total, strings.Join(entries, ","))
}
