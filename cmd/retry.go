package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
)

func newRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Re-fetches critics left in the failure log and writes their reviews separately",
		Long: `retry reads the critics recorded in the failure log by the last run,
fetches each once more, and writes the reviews it recovers to the retry
dataset file (output.retry_reviews_file). Critics that fail again are
appended to the failure log for a later retry.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			engine, err := a.RetryEngine()
			if err != nil {
				return err
			}
			var summary crawler.RunSummary
			err = withStatusServer(cmd.Context(), a, func(ctx context.Context) error {
				var runErr error
				summary, runErr = engine.Retry(ctx)
				return runErr
			})
			if err != nil {
				return fmt.Errorf("retry: %w", err)
			}
			return printSummary(cmd, summary)
		},
	}
}
