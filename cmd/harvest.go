package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
	"github.com/JakeFAU/critic-review-crawler/internal/input"
)

func newHarvestCmd() *cobra.Command {
	var (
		moviesFile  string
		fromCritics bool
	)
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs discovery, review retrieval, the retry pass, and dataset output",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			engine := a.Engine()

			var run func(context.Context) (crawler.RunSummary, error)
			if fromCritics {
				critics, err := a.Local().ReadCritics()
				if err != nil {
					return err
				}
				a.Logger().Info("harvesting existing critic list", zap.Int("critics", len(critics)))
				run = func(ctx context.Context) (crawler.RunSummary, error) { return engine.Harvest(ctx, critics) }
			} else {
				if moviesFile == "" {
					moviesFile = a.Config().Input.MoviesFile
				}
				movies, err := input.LoadMovies(moviesFile)
				if err != nil {
					return err
				}
				a.Logger().Info("harvesting movies", zap.String("file", moviesFile), zap.Int("movies", len(movies)))
				run = func(ctx context.Context) (crawler.RunSummary, error) { return engine.Run(ctx, movies) }
			}

			var summary crawler.RunSummary
			err = withStatusServer(cmd.Context(), a, func(ctx context.Context) error {
				var runErr error
				summary, runErr = run(ctx)
				return runErr
			})
			if err != nil {
				return fmt.Errorf("harvest: %w", err)
			}
			return printSummary(cmd, summary)
		},
	}
	cmd.Flags().StringVar(&moviesFile, "movies", "", "movie list JSON file (overrides input.movies_file)")
	cmd.Flags().BoolVar(&fromCritics, "from-critics", false, "skip discovery and harvest the critic list already in the output dir")
	return cmd
}
