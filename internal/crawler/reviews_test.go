package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/critic-review-crawler/internal/failures"
)

func feedURL(critic, offset string) string {
	return base + "/napi/critic/" + critic + "/review/movie?offset=" + offset
}

func newReviewFetcher(fetcher Fetcher, tracker FailureTracker, maxEmpty int) *ReviewFetcher {
	return NewReviewFetcher(fetcher, tracker, ReviewFetcherConfig{BaseURL: base, MaxEmptyPages: maxEmpty}, nil)
}

func TestFetchAllPaginatesByResultCount(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher().
		body(feedURL("jane", "0"), `{"totalCount": 4, "results": [
			{"media": {"url": "https://www.rottentomatoes.com/m/the-matrix"}, "score": "fresh", "scoreOri": "4/5", "quote": "Bold."},
			{"media": {"url": "https://short.test/m/x"}, "score": "fresh", "scoreOri": "A", "quote": "Skipped."},
			{"score": "rotten", "scoreOri": "C", "quote": "No media."}
		]}`).
		body(feedURL("jane", "3"), `{"totalCount": 4, "results": [
			{"media": {"url": "https://www.rottentomatoes.com/m/heat_1995"}, "score": "rotten", "scoreOri": null, "quote": "Long."}
		]}`)
	tracker := failures.NewMemoryTracker()

	reviews, ok := newReviewFetcher(fetcher, tracker, 0).FetchAll(context.Background(), "jane")
	require.True(t, ok)
	assert.Equal(t, []RawReview{
		{CriticID: "jane", MovieID: "the_matrix", Fresh: "fresh", Score: "4/5", Review: "Bold."},
		{CriticID: "jane", MovieID: "heat_1995", Fresh: "rotten", Score: "", Review: "Long."},
	}, reviews)
	assert.Equal(t, []string{feedURL("jane", "0"), feedURL("jane", "3")}, fetcher.requested())
	assert.Empty(t, tracker.Lines())
}

func TestFetchAllZeroTotal(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher().body(feedURL("quiet", "0"), `{"totalCount": 0, "results": []}`)
	reviews, ok := newReviewFetcher(fetcher, failures.NewMemoryTracker(), 0).FetchAll(context.Background(), "quiet")
	assert.True(t, ok)
	assert.Empty(t, reviews)
	assert.Len(t, fetcher.requested(), 1)
}

func TestFetchAllRendersScalars(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher().body(feedURL("n", "0"), `{"totalCount": 1, "results": [
		{"media": {"url": "https://www.rottentomatoes.com/m/up"}, "score": 1, "scoreOri": 3.5, "quote": null}
	]}`)
	reviews, ok := newReviewFetcher(fetcher, nil, 0).FetchAll(context.Background(), "n")
	require.True(t, ok)
	require.Len(t, reviews, 1)
	assert.Equal(t, "1", reviews[0].Fresh)
	assert.Equal(t, "3.5", reviews[0].Score)
	assert.Equal(t, "", reviews[0].Review)
}

func TestFetchAllFailuresAreRecorded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fetcher *stubFetcher
		wantErr error
	}{
		{
			name:    "transport",
			fetcher: newStubFetcher().fail(feedURL("c", "0"), ErrTransport),
			wantErr: ErrTransport,
		},
		{
			name:    "not json",
			fetcher: newStubFetcher().body(feedURL("c", "0"), "<html>blocked</html>"),
			wantErr: ErrEncoding,
		},
		{
			name:    "missing total",
			fetcher: newStubFetcher().body(feedURL("c", "0"), `{"results": []}`),
			wantErr: ErrStructure,
		},
		{
			name:    "null results",
			fetcher: newStubFetcher().body(feedURL("c", "0"), `{"totalCount": 2, "results": null}`),
			wantErr: ErrStructure,
		},
		{
			name: "missing quote",
			fetcher: newStubFetcher().body(feedURL("c", "0"), `{"totalCount": 1, "results": [
				{"media": {"url": "https://www.rottentomatoes.com/m/up"}, "score": "fresh", "scoreOri": "A"}
			]}`),
			wantErr: ErrStructure,
		},
		{
			name: "later page fails",
			fetcher: newStubFetcher().
				body(feedURL("c", "0"), `{"totalCount": 2, "results": [
					{"media": {"url": "https://www.rottentomatoes.com/m/up"}, "score": "fresh", "scoreOri": "A", "quote": "q"}
				]}`).
				fail(feedURL("c", "1"), ErrTransport),
			wantErr: ErrTransport,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tracker := failures.NewMemoryTracker()
			rf := newReviewFetcher(tc.fetcher, tracker, 0)

			_, err := rf.fetchAll(context.Background(), "c")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), err.Error())

			reviews, ok := rf.FetchAll(context.Background(), "c")
			assert.False(t, ok)
			assert.Nil(t, reviews)
			assert.Equal(t, []string{"c"}, tracker.Lines())
		})
	}
}

func TestFetchAllStalledFeed(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher().body(feedURL("stuck", "0"), `{"totalCount": 5, "results": []}`)
	tracker := failures.NewMemoryTracker()
	rf := newReviewFetcher(fetcher, tracker, 2)

	_, err := rf.fetchAll(context.Background(), "stuck")
	require.ErrorIs(t, err, ErrStalledFeed)
	// The initial page plus two refetches, each empty.
	assert.Len(t, fetcher.requested(), 3)
}

func TestFetchAllEmptyPageThenProgress(t *testing.T) {
	t.Parallel()

	fetcher := &flakyFeed{
		stubFetcher: newStubFetcher(),
		sequence: []string{
			`{"totalCount": 1, "results": []}`,
			`{"totalCount": 1, "results": [{"media": {"url": "https://www.rottentomatoes.com/m/up"}, "score": "fresh", "scoreOri": "B", "quote": "q"}]}`,
		},
	}
	reviews, ok := newReviewFetcher(fetcher, nil, 3).FetchAll(context.Background(), "slow")
	require.True(t, ok)
	assert.Len(t, reviews, 1)
}

func TestFetchAllCancelledIsNotRecorded(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetcher := newStubFetcher().fail(feedURL("c", "0"), context.Canceled)
	tracker := failures.NewMemoryTracker()

	_, ok := newReviewFetcher(fetcher, tracker, 0).FetchAll(ctx, "c")
	assert.False(t, ok)
	assert.Empty(t, tracker.Lines())
}

// flakyFeed returns its sequence of bodies in order, one per request.
type flakyFeed struct {
	*stubFetcher
	sequence []string
	next     int
}

func (f *flakyFeed) Fetch(ctx context.Context, url string) (Page, error) {
	if f.next < len(f.sequence) {
		body := f.sequence[f.next]
		f.next++
		return Page{URL: url, Body: []byte(body)}, nil
	}
	return f.stubFetcher.Fetch(ctx, url)
}
