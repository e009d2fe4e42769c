package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func openStore(t *testing.T) *ReviewStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "reviews.db")
	store, err := Open(context.Background(), path, fixedClock{now: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWriteDatasetRoundTrip(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()
	rows := []crawler.Review{
		{CriticID: "c1", MovieID: "movie_a", Fresh: "fresh", Score: 4, Review: "Great film"},
		{CriticID: "c2", MovieID: "movie_b", Fresh: "rotten", Score: 1, Review: "Tab\tinside"},
	}

	location, err := store.WriteDataset(ctx, "run-1", rows)
	require.NoError(t, err)
	assert.Equal(t, "sqlite://"+store.Path()+"?run_id=run-1", location)

	_, err = store.WriteDataset(ctx, "run-2", rows[:1])
	require.NoError(t, err)

	got, err := store.ListRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	got, err = store.ListRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriteDatasetRejectsInvalidScore(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()
	_, err := store.WriteDataset(ctx, "run-1", []crawler.Review{
		{CriticID: "c1", MovieID: "m", Fresh: "fresh", Score: 3, Review: "ok"},
		{CriticID: "c2", MovieID: "m", Fresh: "fresh", Score: 9, Review: "bad"},
	})
	require.Error(t, err)

	got, err := store.ListRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, got, "failed run must not leave partial rows")
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "", fixedClock{})
	assert.Error(t, err)
	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "x.db"), nil)
	assert.Error(t, err)
}
