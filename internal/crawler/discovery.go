package crawler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// criticLinkPrefixLen is the length of the "/critic/" path prefix on author links.
const criticLinkPrefixLen = len("/critic/")

// AuthorID returns the critic id encoded in a listing row's author link.
func AuthorID(row ListingRow) (string, bool) {
	href, ok := row.AuthorLink()
	if !ok || len(href) <= criticLinkPrefixLen {
		return "", false
	}
	return href[criticLinkPrefixLen:], true
}

// Discoverer collects the critics who reviewed a movie by walking its
// review-listing pages.
type Discoverer struct {
	fetcher Fetcher
	parser  ListingParser
	baseURL string
	logger  *zap.Logger
}

// NewDiscoverer constructs a Discoverer for the site rooted at baseURL.
func NewDiscoverer(fetcher Fetcher, parser ListingParser, baseURL string, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		fetcher: fetcher,
		parser:  parser,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Discover returns the set of critic ids found across every review page of
// movieID. A missing or unreadable page indicator means a single page.
func (d *Discoverer) Discover(ctx context.Context, movieID string) (map[string]struct{}, error) {
	landing, err := d.fetchListing(ctx, d.reviewsURL(movieID))
	if err != nil {
		return nil, err
	}
	pages, err := landing.PageCount()
	if err != nil {
		d.logger.Debug("page indicator unavailable, assuming one page",
			zap.String("movie_id", movieID),
			zap.Error(err),
		)
		pages = 1
	}

	critics := make(map[string]struct{})
	for page := 1; page <= pages; page++ {
		reader, err := d.fetchListing(ctx, fmt.Sprintf("%s?page=%d&sort=", d.reviewsURL(movieID), page))
		if err != nil {
			return nil, err
		}
		found := 0
		for _, row := range reader.ReviewRows() {
			id, ok := AuthorID(row)
			if !ok {
				continue
			}
			critics[id] = struct{}{}
			found++
		}
		d.logger.Debug("scanned review page",
			zap.String("movie_id", movieID),
			zap.Int("page", page),
			zap.Int("pages", pages),
			zap.Int("critics", found),
		)
	}
	return critics, nil
}

func (d *Discoverer) reviewsURL(movieID string) string {
	return d.baseURL + "/m/" + movieID + "/reviews"
}

func (d *Discoverer) fetchListing(ctx context.Context, url string) (ListingReader, error) {
	page, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	reader, err := d.parser.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return reader, nil
}
