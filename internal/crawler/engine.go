package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/critic-review-crawler/internal/metrics"
)

const (
	passFirst = "first"
	passRetry = "retry"
)

// CriticSource discovers the critics who reviewed a movie.
type CriticSource interface {
	Discover(ctx context.Context, movieID string) (map[string]struct{}, error)
}

// ReviewSource retrieves all of a critic's reviews, all-or-nothing.
type ReviewSource interface {
	FetchAll(ctx context.Context, criticID string) ([]RawReview, bool)
}

// Engine drives discovery, retrieval, the retry pass, and dataset output in
// sequence.
type Engine struct {
	discoverer CriticSource
	reviews    ReviewSource
	tracker    FailureTracker
	assembler  Assembler
	critics    CriticListWriter
	sinks      []DatasetSink
	notifier   Notifier
	clock      Clock
	ids        IDGenerator
	progress   *Progress
	logger     *zap.Logger
}

// NewEngine constructs an Engine. critics, notifier and progress may be nil.
func NewEngine(
	discoverer CriticSource,
	reviews ReviewSource,
	tracker FailureTracker,
	assembler Assembler,
	critics CriticListWriter,
	sinks []DatasetSink,
	notifier Notifier,
	clock Clock,
	ids IDGenerator,
	progress *Progress,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		discoverer: discoverer,
		reviews:    reviews,
		tracker:    tracker,
		assembler:  assembler,
		critics:    critics,
		sinks:      sinks,
		notifier:   notifier,
		clock:      clock,
		ids:        ids,
		progress:   progress,
		logger:     logger,
	}
}

// Run executes the full pipeline for movies. Fetch failures are absorbed and
// reported in the summary; only setup and output errors are returned.
func (e *Engine) Run(ctx context.Context, movies []string) (RunSummary, error) {
	summary, err := e.begin()
	if err != nil {
		return summary, err
	}
	summary.Movies = len(movies)
	if err := e.resetFailures(ctx); err != nil {
		return summary, err
	}

	critics, failedMovies, err := e.discover(ctx, summary.RunID, movies)
	summary.MoviesFailed = failedMovies
	if err != nil {
		return summary, err
	}
	return e.harvest(ctx, summary, critics)
}

// Discover runs critic discovery alone and writes the sorted critic list.
func (e *Engine) Discover(ctx context.Context, movies []string) ([]string, error) {
	summary, err := e.begin()
	if err != nil {
		return nil, err
	}
	critics, _, err := e.discover(ctx, summary.RunID, movies)
	if err == nil {
		e.setPhase(PhaseDone)
	}
	return critics, err
}

// Harvest runs retrieval, the retry pass, and dataset output for an existing
// critic list.
func (e *Engine) Harvest(ctx context.Context, critics []string) (RunSummary, error) {
	summary, err := e.begin()
	if err != nil {
		return summary, err
	}
	if err := e.resetFailures(ctx); err != nil {
		return summary, err
	}
	return e.harvest(ctx, summary, critics)
}

// Retry re-fetches the critics left in the failure log by an earlier run,
// once each, and writes their reviews to the dataset sinks.
func (e *Engine) Retry(ctx context.Context) (RunSummary, error) {
	summary, err := e.begin()
	if err != nil {
		return summary, err
	}
	raw, err := e.retryPass(ctx, &summary)
	if err != nil {
		return summary, err
	}
	return e.finish(ctx, summary, raw)
}

func (e *Engine) begin() (RunSummary, error) {
	runID, err := e.ids.NewID()
	if err != nil {
		return RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	summary := RunSummary{RunID: runID, StartedAt: e.clock.Now()}
	e.progress.update(summary.StartedAt, func(s *ProgressSnapshot) {
		*s = ProgressSnapshot{RunID: runID, Phase: PhaseIdle}
	})
	return summary, nil
}

func (e *Engine) discover(ctx context.Context, runID string, movies []string) ([]string, int, error) {
	e.progress.update(e.clock.Now(), func(s *ProgressSnapshot) {
		s.Phase = PhaseDiscovering
		s.MoviesTotal = len(movies)
	})

	union := make(map[string]struct{})
	failed := 0
	for _, movie := range movies {
		if err := ctx.Err(); err != nil {
			return nil, failed, fmt.Errorf("discover critics: %w", err)
		}
		found, err := e.discoverer.Discover(ctx, movie)
		if err != nil {
			if ctx.Err() != nil {
				return nil, failed, fmt.Errorf("discover critics: %w", ctx.Err())
			}
			failed++
			metrics.ObserveMovie("failed")
			e.logger.Warn("critic discovery failed, skipping movie",
				zap.String("run_id", runID),
				zap.String("movie_id", movie),
				zap.Error(err),
			)
		} else {
			metrics.ObserveMovie("ok")
			e.logger.Info("discovered critics",
				zap.String("run_id", runID),
				zap.String("movie_id", movie),
				zap.Int("critics", len(found)),
			)
			for id := range found {
				union[id] = struct{}{}
			}
		}
		e.progress.update(e.clock.Now(), func(s *ProgressSnapshot) { s.MoviesDone++ })
	}

	critics := make([]string, 0, len(union))
	for id := range union {
		critics = append(critics, id)
	}
	sort.Strings(critics)

	if e.critics != nil {
		if err := e.critics.WriteCritics(ctx, critics); err != nil {
			return nil, failed, fmt.Errorf("write critic list: %w", err)
		}
	}
	e.logger.Info("critic discovery finished",
		zap.String("run_id", runID),
		zap.Int("movies", len(movies)),
		zap.Int("movies_failed", failed),
		zap.Int("critics", len(critics)),
	)
	return critics, failed, nil
}

func (e *Engine) resetFailures(ctx context.Context) error {
	if err := e.tracker.Reset(ctx); err != nil {
		return fmt.Errorf("reset failure log: %w", err)
	}
	return nil
}

func (e *Engine) harvest(ctx context.Context, summary RunSummary, critics []string) (RunSummary, error) {
	ids := uniqueNonEmpty(critics)
	summary.Critics = len(ids)
	e.progress.update(e.clock.Now(), func(s *ProgressSnapshot) {
		s.Phase = PhaseFetching
		s.CriticsTotal = len(ids)
	})
	e.logger.Info("fetching critic reviews", zap.String("run_id", summary.RunID), zap.Int("critics", len(ids)))

	var raw []RawReview
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("fetch reviews: %w", err)
		}
		reviews, ok := e.reviews.FetchAll(ctx, id)
		if ok {
			raw = append(raw, reviews...)
			metrics.ObserveCritic(passFirst, "ok", len(reviews))
		} else {
			summary.CriticsFailed++
			metrics.ObserveCritic(passFirst, "failed", 0)
		}
		e.progress.update(e.clock.Now(), func(s *ProgressSnapshot) {
			s.CriticsDone++
			s.RawReviews += len(reviews)
			if !ok {
				s.CriticsFailed++
			}
		})
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("fetch reviews: %w", err)
	}

	retried, err := e.retryPass(ctx, &summary)
	if err != nil {
		return summary, err
	}
	raw = append(raw, retried...)
	return e.finish(ctx, summary, raw)
}

// retryPass drains the failure log and fetches every drained critic once.
func (e *Engine) retryPass(ctx context.Context, summary *RunSummary) ([]RawReview, error) {
	drained, err := e.tracker.Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("drain failure log: %w", err)
	}
	summary.CriticsRetried = len(drained)
	e.progress.update(e.clock.Now(), func(s *ProgressSnapshot) {
		s.Phase = PhaseRetrying
		s.RetryTotal = len(drained)
	})
	if len(drained) > 0 {
		e.logger.Info("retrying failed critics", zap.String("run_id", summary.RunID), zap.Int("critics", len(drained)))
	}

	var raw []RawReview
	for _, id := range drained {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("retry failed critics: %w", err)
		}
		reviews, ok := e.reviews.FetchAll(ctx, id)
		if ok {
			raw = append(raw, reviews...)
			metrics.ObserveCritic(passRetry, "ok", len(reviews))
		} else {
			summary.FailedTwice = append(summary.FailedTwice, id)
			metrics.ObserveCritic(passRetry, "failed", 0)
		}
		e.progress.update(e.clock.Now(), func(s *ProgressSnapshot) {
			s.RetryDone++
			s.RawReviews += len(reviews)
			if !ok {
				s.FailedTwice++
			}
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("retry failed critics: %w", err)
	}

	if n := len(summary.FailedTwice); n > 0 {
		metrics.ObserveFailedTwice(n)
		e.logger.Warn("critics failed on retry and are excluded from the dataset",
			zap.String("run_id", summary.RunID),
			zap.Int("count", n),
			zap.String("critic_ids", strings.Join(summary.FailedTwice, ",")),
		)
	}
	return raw, nil
}

func (e *Engine) finish(ctx context.Context, summary RunSummary, raw []RawReview) (RunSummary, error) {
	e.setPhase(PhaseAssembling)
	summary.RawReviews = len(raw)
	reviews := e.assembler.Assemble(raw)
	summary.DatasetRows = len(reviews)
	critics := make(map[string]struct{})
	movies := make(map[string]struct{})
	for _, r := range reviews {
		critics[r.CriticID] = struct{}{}
		movies[r.MovieID] = struct{}{}
	}
	summary.DatasetCritics = len(critics)
	summary.DatasetMovies = len(movies)
	metrics.ObserveDatasetRows(len(reviews))

	var errs []error
	for _, sink := range e.sinks {
		location, err := sink.WriteDataset(ctx, summary.RunID, reviews)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		summary.DatasetLocations = append(summary.DatasetLocations, location)
	}
	summary.FinishedAt = e.clock.Now()
	if err := errors.Join(errs...); err != nil {
		return summary, fmt.Errorf("write dataset: %w", err)
	}

	if e.notifier != nil {
		id, err := e.notifier.Notify(ctx, summary)
		if err != nil {
			e.logger.Error("publish run summary", zap.String("run_id", summary.RunID), zap.Error(err))
		} else {
			summary.NotificationID = id
		}
	}

	e.setPhase(PhaseDone)
	e.logger.Info("harvest finished",
		zap.String("run_id", summary.RunID),
		zap.Int("critics", summary.Critics),
		zap.Int("critics_failed", summary.CriticsFailed),
		zap.Int("critics_retried", summary.CriticsRetried),
		zap.Int("failed_twice", len(summary.FailedTwice)),
		zap.Int("raw_reviews", summary.RawReviews),
		zap.Int("dataset_rows", summary.DatasetRows),
		zap.Int("dataset_critics", summary.DatasetCritics),
		zap.Int("dataset_movies", summary.DatasetMovies),
		zap.Strings("locations", summary.DatasetLocations),
	)
	return summary, nil
}

func (e *Engine) setPhase(phase Phase) {
	e.progress.update(e.clock.Now(), func(s *ProgressSnapshot) { s.Phase = phase })
}

// uniqueNonEmpty trims ids and drops blanks and repeats, keeping first-seen order.
func uniqueNonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
