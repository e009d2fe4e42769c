package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

const (
	// movieURLPrefixLen is the length of "https://www.rottentomatoes.com/m/",
	// the prefix feed entries carry before the movie slug.
	movieURLPrefixLen = len("https://www.rottentomatoes.com/m/")

	defaultMaxEmptyPages = 3
)

// ReviewFetcherConfig controls critic feed retrieval.
type ReviewFetcherConfig struct {
	BaseURL string
	// MaxEmptyPages is the number of consecutive result-less pages tolerated
	// before the feed is declared stalled.
	MaxEmptyPages int
}

// ReviewFetcher pulls every review a critic has published from the
// offset-paginated critic feed.
type ReviewFetcher struct {
	fetcher Fetcher
	tracker FailureTracker
	cfg     ReviewFetcherConfig
	logger  *zap.Logger
}

// NewReviewFetcher constructs a ReviewFetcher. Failed critics are recorded in tracker.
func NewReviewFetcher(fetcher Fetcher, tracker FailureTracker, cfg ReviewFetcherConfig, logger *zap.Logger) *ReviewFetcher {
	if cfg.MaxEmptyPages <= 0 {
		cfg.MaxEmptyPages = defaultMaxEmptyPages
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewFetcher{
		fetcher: fetcher,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
	}
}

// FetchAll returns all of a critic's reviews. Retrieval is all-or-nothing: on
// any failure the critic is recorded in the failure tracker and FetchAll
// returns nil, false.
func (r *ReviewFetcher) FetchAll(ctx context.Context, criticID string) ([]RawReview, bool) {
	reviews, err := r.fetchAll(ctx, criticID)
	if err == nil {
		return reviews, true
	}
	if ctx.Err() != nil {
		r.logger.Debug("critic retrieval interrupted", zap.String("critic_id", criticID), zap.Error(err))
		return nil, false
	}
	r.logger.Warn("critic retrieval failed", zap.String("critic_id", criticID), zap.Error(err))
	if r.tracker != nil {
		if recErr := r.tracker.Record(ctx, criticID); recErr != nil {
			r.logger.Error("record critic failure", zap.String("critic_id", criticID), zap.Error(recErr))
		}
	}
	return nil, false
}

func (r *ReviewFetcher) fetchAll(ctx context.Context, criticID string) ([]RawReview, error) {
	page, err := r.fetchFeed(ctx, criticID, 0)
	if err != nil {
		return nil, err
	}
	total := page.total

	var (
		reviews    []RawReview
		consumed   int
		emptyPages int
		fresh      = true
	)
	for consumed < total {
		// The offset-0 page fetched for the total doubles as the first page.
		if !fresh {
			page, err = r.fetchFeed(ctx, criticID, consumed)
			if err != nil {
				return nil, err
			}
		}
		fresh = false

		for _, entry := range page.entries {
			review, ok, err := convertEntry(criticID, entry)
			if err != nil {
				return nil, fmt.Errorf("critic %s offset %d: %w", criticID, consumed, err)
			}
			if ok {
				reviews = append(reviews, review)
			}
		}

		if len(page.entries) == 0 {
			emptyPages++
			if emptyPages > r.cfg.MaxEmptyPages {
				return nil, fmt.Errorf("critic %s: %d empty pages at offset %d of %d: %w",
					criticID, emptyPages, consumed, total, ErrStalledFeed)
			}
			continue
		}
		emptyPages = 0
		consumed += len(page.entries)
		r.logger.Debug("consumed feed page",
			zap.String("critic_id", criticID),
			zap.Int("offset", consumed),
			zap.Int("total", total),
		)
	}
	return reviews, nil
}

type feedPage struct {
	total   int
	entries []json.RawMessage
}

type feedEnvelope struct {
	TotalCount *float64           `json:"totalCount"`
	Results    *[]json.RawMessage `json:"results"`
}

func (r *ReviewFetcher) feedURL(criticID string, offset int) string {
	return fmt.Sprintf("%s/napi/critic/%s/review/movie?offset=%d", r.cfg.BaseURL, criticID, offset)
}

func (r *ReviewFetcher) fetchFeed(ctx context.Context, criticID string, offset int) (feedPage, error) {
	url := r.feedURL(criticID, offset)
	page, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return feedPage{}, fmt.Errorf("fetch critic feed: %w", err)
	}
	var env feedEnvelope
	if err := json.Unmarshal(page.Body, &env); err != nil {
		return feedPage{}, fmt.Errorf("decode critic feed %s: %w: %w", url, ErrEncoding, err)
	}
	if env.TotalCount == nil {
		return feedPage{}, fmt.Errorf("critic feed %s: totalCount: %w", url, ErrStructure)
	}
	if env.Results == nil {
		return feedPage{}, fmt.Errorf("critic feed %s: results: %w", url, ErrStructure)
	}
	return feedPage{
		total:   int(math.Ceil(*env.TotalCount)),
		entries: *env.Results,
	}, nil
}

// convertEntry turns one feed entry into a RawReview. Entries without a
// usable movie URL are skipped (ok is false); a missing score, scoreOri or
// quote key is a structure error.
func convertEntry(criticID string, entry json.RawMessage) (RawReview, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
		return RawReview{}, false, nil
	}
	movieID, ok := movieIDFromMedia(fields["media"])
	if !ok {
		return RawReview{}, false, nil
	}

	review := RawReview{CriticID: criticID, MovieID: movieID}
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"score", &review.Fresh},
		{"scoreOri", &review.Score},
		{"quote", &review.Review},
	} {
		raw, present := fields[f.key]
		if !present {
			return RawReview{}, false, fmt.Errorf("entry for %s: %s: %w", movieID, f.key, ErrStructure)
		}
		*f.dst = jsonText(raw)
	}
	return review, true, nil
}

func movieIDFromMedia(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var media struct {
		URL *string `json:"url"`
	}
	if err := json.Unmarshal(raw, &media); err != nil || media.URL == nil {
		return "", false
	}
	if len(*media.URL) <= movieURLPrefixLen {
		return "", false
	}
	return strings.ReplaceAll((*media.URL)[movieURLPrefixLen:], "-", "_"), true
}

// jsonText renders a JSON scalar as text: strings unquoted, null as "",
// anything else verbatim.
func jsonText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
