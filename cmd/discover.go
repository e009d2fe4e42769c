package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/critic-review-crawler/internal/input"
)

func newDiscoverCmd() *cobra.Command {
	var moviesFile string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Writes the deduplicated critic list for the movie list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if moviesFile == "" {
				moviesFile = a.Config().Input.MoviesFile
			}
			movies, err := input.LoadMovies(moviesFile)
			if err != nil {
				return err
			}

			var critics []string
			err = withStatusServer(cmd.Context(), a, func(ctx context.Context) error {
				var runErr error
				critics, runErr = a.Engine().Discover(ctx, movies)
				return runErr
			})
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			a.Logger().Info("critic list written", zap.Int("critics", len(critics)))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d critics\n", len(critics))
			return err
		},
	}
	cmd.Flags().StringVar(&moviesFile, "movies", "", "movie list JSON file (overrides input.movies_file)")
	return cmd
}
