// Package listing reads movie review-listing pages with goquery.
package listing

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
)

const (
	pageInfoSelector   = "span.pageInfo"
	reviewRowSelector  = "div.row.review_table_row"
	authorLinkSelector = "a.unstyled.bold.articleLink"

	// pageInfoPrefixLen is the length of the "Page 1 of" label preceding the total.
	pageInfoPrefixLen = len("Page 1 of")
)

var pageTotalPattern = regexp.MustCompile(`(?i)page\s+\d+\s+of\s+(\d+)`)

// Parser builds Readers from fetched pages.
type Parser struct{}

// NewParser constructs a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse implements crawler.ListingParser. An empty page parses into a Reader
// with no rows and no page indicator.
func (p *Parser) Parse(page crawler.Page) (crawler.ListingReader, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", page.URL, err)
	}
	return &Reader{doc: doc}, nil
}

// Reader exposes the page indicator and review rows of one listing page.
type Reader struct {
	doc *goquery.Document
}

// PageCount returns the total from the "Page 1 of N" indicator.
func (r *Reader) PageCount() (int, error) {
	info := r.doc.Find(pageInfoSelector).First()
	if info.Length() == 0 {
		return 0, fmt.Errorf("page indicator %q: %w", pageInfoSelector, crawler.ErrStructure)
	}
	text := strings.TrimSpace(info.Text())
	if m := pageTotalPattern.FindStringSubmatch(text); m != nil {
		return atoiPositive(m[1])
	}
	if len(text) <= pageInfoPrefixLen {
		return 0, fmt.Errorf("page indicator %q: %w", text, crawler.ErrStructure)
	}
	return atoiPositive(strings.TrimSpace(text[pageInfoPrefixLen:]))
}

// ReviewRows returns every review row on the page in document order.
func (r *Reader) ReviewRows() []crawler.ListingRow {
	sel := r.doc.Find(reviewRowSelector)
	rows := make([]crawler.ListingRow, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		rows = append(rows, Row{sel: s})
	})
	return rows
}

// Row is a single review row.
type Row struct {
	sel *goquery.Selection
}

// AuthorLink returns the href of the row's critic link.
func (r Row) AuthorLink() (string, bool) {
	return r.sel.Find(authorLinkSelector).First().Attr("href")
}

func atoiPositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("page total %q: %w", s, crawler.ErrStructure)
	}
	if n < 1 {
		return 0, fmt.Errorf("page total %d: %w", n, crawler.ErrStructure)
	}
	return n, nil
}
