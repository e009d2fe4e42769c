package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/critic-review-crawler/internal/failures"
)

type stubCriticSource struct {
	critics map[string][]string
	errs    map[string]error
}

func (s stubCriticSource) Discover(_ context.Context, movieID string) (map[string]struct{}, error) {
	if err := s.errs[movieID]; err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for _, id := range s.critics[movieID] {
		out[id] = struct{}{}
	}
	return out, nil
}

// scriptedReviews answers FetchAll from a per-critic script of outcomes; a
// nil entry is a failure that gets recorded like the real fetcher does.
type scriptedReviews struct {
	mu      sync.Mutex
	tracker FailureTracker
	script  map[string][][]RawReview
	calls   []string
}

func (s *scriptedReviews) FetchAll(ctx context.Context, criticID string) ([]RawReview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, criticID)
	steps := s.script[criticID]
	if len(steps) == 0 {
		_ = s.tracker.Record(ctx, criticID)
		return nil, false
	}
	step := steps[0]
	if len(steps) > 1 {
		s.script[criticID] = steps[1:]
	}
	if step == nil {
		_ = s.tracker.Record(ctx, criticID)
		return nil, false
	}
	return step, true
}

type passthroughAssembler struct{}

func (passthroughAssembler) Assemble(raw []RawReview) []Review {
	out := make([]Review, 0, len(raw))
	for _, r := range raw {
		out = append(out, Review{CriticID: r.CriticID, MovieID: r.MovieID, Fresh: r.Fresh, Score: 3, Review: r.Review})
	}
	return out
}

type recordingSink struct {
	critics  []string
	datasets [][]Review
	err      error
}

func (s *recordingSink) WriteCritics(_ context.Context, ids []string) error {
	s.critics = append([]string(nil), ids...)
	return s.err
}

func (s *recordingSink) WriteDataset(_ context.Context, runID string, reviews []Review) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.datasets = append(s.datasets, reviews)
	return "mem://" + runID, nil
}

type recordingNotifier struct {
	summaries []RunSummary
}

func (n *recordingNotifier) Notify(_ context.Context, summary RunSummary) (string, error) {
	n.summaries = append(n.summaries, summary)
	return "msg-1", nil
}

func review(critic, movie string) RawReview {
	return RawReview{CriticID: critic, MovieID: movie, Fresh: "fresh", Score: "B", Review: critic + " on " + movie}
}

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestEngineRunFullPipeline(t *testing.T) {
	t.Parallel()

	tracker := failures.NewMemoryTracker()
	reviews := &scriptedReviews{
		tracker: tracker,
		script: map[string][][]RawReview{
			"a": {{review("a", "m1"), review("a", "m3")}},
			"b": {nil, {review("b", "m1")}},
			// c has no script and always fails.
		},
	}
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	progress := NewProgress()
	source := stubCriticSource{
		critics: map[string][]string{"m1": {"b", "a"}, "m3": {"a", "c"}},
		errs:    map[string]error{"m2": ErrTransport},
	}

	engine := NewEngine(source, reviews, tracker, passthroughAssembler{}, sink,
		[]DatasetSink{sink}, notifier, fixedClock{now: epoch}, &sequenceIDs{}, progress, nil)

	summary, err := engine.Run(context.Background(), []string{"m1", "m2", "m3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, sink.critics)
	assert.Equal(t, []string{"a", "b", "c", "b", "c"}, reviews.calls)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 3, summary.Movies)
	assert.Equal(t, 1, summary.MoviesFailed)
	assert.Equal(t, 3, summary.Critics)
	assert.Equal(t, 2, summary.CriticsFailed)
	assert.Equal(t, 2, summary.CriticsRetried)
	assert.Equal(t, []string{"c"}, summary.FailedTwice)
	assert.Equal(t, 3, summary.RawReviews)
	assert.Equal(t, 3, summary.DatasetRows)
	assert.Equal(t, 2, summary.DatasetCritics)
	assert.Equal(t, 2, summary.DatasetMovies)
	assert.Equal(t, []string{"mem://run-1"}, summary.DatasetLocations)
	assert.Equal(t, "msg-1", summary.NotificationID)
	require.Len(t, notifier.summaries, 1)

	require.Len(t, sink.datasets, 1)
	assert.Equal(t, "a", sink.datasets[0][0].CriticID)
	assert.Equal(t, "b", sink.datasets[0][2].CriticID)

	// First-pass failures, the separator, then the retry-pass failure.
	assert.Equal(t, []string{"b", "c", "", "c"}, tracker.Lines())

	snap := progress.Snapshot()
	assert.Equal(t, PhaseDone, snap.Phase)
	assert.Equal(t, 3, snap.MoviesDone)
	assert.Equal(t, 3, snap.CriticsDone)
	assert.Equal(t, 2, snap.RetryDone)
	assert.Equal(t, 1, snap.FailedTwice)
	assert.Equal(t, epoch, snap.UpdatedAt)
}

func TestEngineHarvestSkipsBlankCritics(t *testing.T) {
	t.Parallel()

	tracker := failures.NewMemoryTracker()
	reviews := &scriptedReviews{tracker: tracker, script: map[string][][]RawReview{"a": {{review("a", "m")}}}}
	sink := &recordingSink{}
	engine := NewEngine(stubCriticSource{}, reviews, tracker, passthroughAssembler{}, nil,
		[]DatasetSink{sink}, nil, fixedClock{now: epoch}, &sequenceIDs{}, nil, nil)

	summary, err := engine.Harvest(context.Background(), []string{"", "a", "  "})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, reviews.calls)
	assert.Equal(t, 1, summary.Critics)
	assert.Empty(t, summary.FailedTwice)
}

func TestEngineHarvestDedupesCritics(t *testing.T) {
	t.Parallel()

	tracker := failures.NewMemoryTracker()
	reviews := &scriptedReviews{tracker: tracker, script: map[string][][]RawReview{
		"a": {{review("a", "m")}},
		"b": {{review("b", "m")}},
	}}
	sink := &recordingSink{}
	engine := NewEngine(stubCriticSource{}, reviews, tracker, passthroughAssembler{}, nil,
		[]DatasetSink{sink}, nil, fixedClock{now: epoch}, &sequenceIDs{}, nil, nil)

	summary, err := engine.Harvest(context.Background(), []string{"a", "b", " a", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reviews.calls)
	assert.Equal(t, 2, summary.Critics)
	assert.Equal(t, 2, summary.DatasetRows)
}

// eventLog records the order in which the engine touches its collaborators.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

type loggingTracker struct {
	*failures.MemoryTracker
	log *eventLog
}

func (t loggingTracker) Reset(ctx context.Context) error {
	t.log.add("reset")
	return t.MemoryTracker.Reset(ctx)
}

type loggingCriticSource struct {
	stubCriticSource
	log *eventLog
}

func (s loggingCriticSource) Discover(ctx context.Context, movieID string) (map[string]struct{}, error) {
	s.log.add("discover " + movieID)
	return s.stubCriticSource.Discover(ctx, movieID)
}

func TestEngineRunResetsFailureLogBeforeDiscovery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := &eventLog{}
	tracker := loggingTracker{MemoryTracker: failures.NewMemoryTracker(), log: log}
	require.NoError(t, tracker.Record(ctx, "stale"))

	source := loggingCriticSource{
		stubCriticSource: stubCriticSource{critics: map[string][]string{"m": {"a"}}},
		log:              log,
	}
	reviews := &scriptedReviews{tracker: tracker, script: map[string][][]RawReview{"a": {{review("a", "m")}}}}
	engine := NewEngine(source, reviews, tracker, passthroughAssembler{}, &recordingSink{},
		nil, nil, fixedClock{now: epoch}, &sequenceIDs{}, nil, nil)

	summary, err := engine.Run(ctx, []string{"m"})
	require.NoError(t, err)
	assert.Equal(t, []string{"reset", "discover m"}, log.events)
	assert.Equal(t, 0, summary.CriticsRetried)
	assert.Equal(t, []string{""}, tracker.Lines())
}

func TestEngineRetryUsesExistingLog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := failures.NewMemoryTracker()
	require.NoError(t, tracker.Record(ctx, "old"))
	require.NoError(t, tracker.Record(ctx, "gone"))

	reviews := &scriptedReviews{tracker: tracker, script: map[string][][]RawReview{"old": {{review("old", "m")}}}}
	sink := &recordingSink{}
	engine := NewEngine(stubCriticSource{}, reviews, tracker, passthroughAssembler{}, nil,
		[]DatasetSink{sink}, nil, fixedClock{now: epoch}, &sequenceIDs{}, nil, nil)

	summary, err := engine.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CriticsRetried)
	assert.Equal(t, []string{"gone"}, summary.FailedTwice)
	assert.Equal(t, 1, summary.DatasetRows)
}

func TestEngineDiscoverWritesCriticList(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	source := stubCriticSource{critics: map[string][]string{"m": {"z", "y"}}}
	engine := NewEngine(source, nil, nil, nil, sink, nil, nil, fixedClock{now: epoch}, &sequenceIDs{}, nil, nil)

	critics, err := engine.Discover(context.Background(), []string{"m", "m"})
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, critics)
	assert.Equal(t, []string{"y", "z"}, sink.critics)
}

func TestEngineReturnsSetupErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")

	t.Run("critic list", func(t *testing.T) {
		t.Parallel()
		sink := &recordingSink{err: boom}
		source := stubCriticSource{critics: map[string][]string{"m": {"a"}}}
		engine := NewEngine(source, nil, failures.NewMemoryTracker(), passthroughAssembler{}, sink,
			nil, nil, fixedClock{now: epoch}, &sequenceIDs{}, nil, nil)
		_, err := engine.Run(context.Background(), []string{"m"})
		require.ErrorIs(t, err, boom)
	})

	t.Run("dataset sink", func(t *testing.T) {
		t.Parallel()
		tracker := failures.NewMemoryTracker()
		reviews := &scriptedReviews{tracker: tracker, script: map[string][][]RawReview{"a": {{review("a", "m")}}}}
		engine := NewEngine(stubCriticSource{}, reviews, tracker, passthroughAssembler{}, nil,
			[]DatasetSink{&recordingSink{}, &recordingSink{err: boom}}, nil, fixedClock{now: epoch}, &sequenceIDs{}, nil, nil)
		summary, err := engine.Harvest(context.Background(), []string{"a"})
		require.ErrorIs(t, err, boom)
		assert.Len(t, summary.DatasetLocations, 1)
	})

	t.Run("run id", func(t *testing.T) {
		t.Parallel()
		engine := NewEngine(stubCriticSource{}, nil, nil, nil, nil, nil, nil, fixedClock{now: epoch}, &sequenceIDs{err: boom}, nil, nil)
		_, err := engine.Run(context.Background(), nil)
		require.ErrorIs(t, err, boom)
	})
}

func TestEngineStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	source := stubCriticSource{critics: map[string][]string{"m": {"a"}}}
	engine := NewEngine(source, nil, failures.NewMemoryTracker(), passthroughAssembler{}, nil,
		nil, nil, fixedClock{now: epoch}, &sequenceIDs{}, nil, nil)

	_, err := engine.Run(ctx, []string{"m"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProgressNilSafe(t *testing.T) {
	t.Parallel()

	var p *Progress
	p.update(epoch, func(s *ProgressSnapshot) { s.CriticsDone++ })
	assert.Equal(t, PhaseIdle, p.Snapshot().Phase)
}
