package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "https://reviews.test"

func TestAuthorID(t *testing.T) {
	t.Parallel()

	id, ok := AuthorID(stubRow{href: "/critic/jane-doe", ok: true})
	assert.True(t, ok)
	assert.Equal(t, "jane-doe", id)

	_, ok = AuthorID(stubRow{href: "/critic/", ok: true})
	assert.False(t, ok)
	_, ok = AuthorID(stubRow{})
	assert.False(t, ok)
}

func TestDiscoverUnionsAllPages(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher().
		body(base+"/m/movie_a/reviews", "pages: 3").
		body(base+"/m/movie_a/reviews?page=1&sort=", "row: /critic/c1\nrow: /critic/c2\nrow:").
		body(base+"/m/movie_a/reviews?page=2&sort=", "row: /critic/c2\nrow: /critic/\nrow: /critic/c3").
		body(base+"/m/movie_a/reviews?page=3&sort=", "")

	d := NewDiscoverer(fetcher, stubListingParser{}, base+"/", nil)
	critics, err := d.Discover(context.Background(), "movie_a")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"c1": {}, "c2": {}, "c3": {}}, critics)
	assert.Equal(t, []string{
		base + "/m/movie_a/reviews",
		base + "/m/movie_a/reviews?page=1&sort=",
		base + "/m/movie_a/reviews?page=2&sort=",
		base + "/m/movie_a/reviews?page=3&sort=",
	}, fetcher.requested())
}

func TestDiscoverMissingIndicatorMeansOnePage(t *testing.T) {
	t.Parallel()

	for name, landing := range map[string]string{
		"missing":     "row: /critic/ignored",
		"unparseable": "pages: many",
		"empty page":  "",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fetcher := newStubFetcher().
				body(base+"/m/m/reviews", landing).
				body(base+"/m/m/reviews?page=1&sort=", "row: /critic/solo")

			critics, err := NewDiscoverer(fetcher, stubListingParser{}, base, nil).Discover(context.Background(), "m")
			require.NoError(t, err)
			assert.Equal(t, map[string]struct{}{"solo": {}}, critics)
			assert.Len(t, fetcher.requested(), 2)
		})
	}
}

func TestDiscoverEmptyPageYieldsNoCritics(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher().
		body(base+"/m/m/reviews", "pages: 1")
	fetcher.pages[base+"/m/m/reviews?page=1&sort="] = Page{URL: base + "/m/m/reviews?page=1&sort="}

	critics, err := NewDiscoverer(fetcher, stubListingParser{}, base, nil).Discover(context.Background(), "m")
	require.NoError(t, err)
	assert.Empty(t, critics)
}

func TestDiscoverPropagatesTransportErrors(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher().
		body(base+"/m/m/reviews", "pages: 2").
		body(base+"/m/m/reviews?page=1&sort=", "row: /critic/c1").
		fail(base+"/m/m/reviews?page=2&sort=", ErrTransport)

	_, err := NewDiscoverer(fetcher, stubListingParser{}, base, nil).Discover(context.Background(), "m")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}
