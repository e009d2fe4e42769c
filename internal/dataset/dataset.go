// Package dataset turns raw critic reviews into the cleaned review dataset.
package dataset

import (
	"strings"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
	"github.com/JakeFAU/critic-review-crawler/internal/score"
)

// vanityMovieID is the placeholder the feed uses for non-movie entries.
const vanityMovieID = ":vanity"

var boilerplateReviews = map[string]struct{}{
	"see website for more details.": {},
	".":                             {},
}

var boilerplatePrefixes = []string{
	"click to ",
	"click for ",
	"full review ",
}

// Assembler implements crawler.Assembler.
type Assembler struct{}

// Assemble implements crawler.Assembler.
func (Assembler) Assemble(raw []crawler.RawReview) []crawler.Review {
	return Assemble(raw)
}

// Assemble normalizes scores and filters out incomplete and boilerplate rows,
// preserving input order.
func Assemble(raw []crawler.RawReview) []crawler.Review {
	out := make([]crawler.Review, 0, len(raw))
	for _, r := range raw {
		if r.CriticID == "" || r.MovieID == "" || r.Fresh == "" || r.Review == "" {
			continue
		}
		s := score.Normalize(r.Score)
		if !s.Valid() {
			continue
		}
		if r.MovieID == vanityMovieID || isBoilerplate(r.Review) {
			continue
		}
		out = append(out, crawler.Review{
			CriticID: r.CriticID,
			MovieID:  r.MovieID,
			Fresh:    r.Fresh,
			Score:    int(s),
			Review:   r.Review,
		})
	}
	return out
}

func isBoilerplate(review string) bool {
	lower := strings.ToLower(review)
	if _, ok := boilerplateReviews[lower]; ok {
		return true
	}
	for _, prefix := range boilerplatePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
