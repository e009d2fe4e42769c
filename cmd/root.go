// Package cmd defines the criticcrawler CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/critic-review-crawler/internal/app"
	"github.com/JakeFAU/critic-review-crawler/internal/config"
	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
	"github.com/JakeFAU/critic-review-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to point the
// commands at a local site.
var newApp = func(ctx context.Context, cfgFile string) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "criticcrawler",
		Short: "Harvests film critics' reviews into a scored dataset.",
		Long: `criticcrawler discovers the critics who reviewed a list of movies,
pulls every review each critic has published, normalizes the scores to a
1-5 scale, and writes a tab-separated dataset.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars use the CRITICS_ prefix")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newRetryCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withStatusServer runs fn while the status server (if configured) serves
// progress in the background.
func withStatusServer(ctx context.Context, a *app.App, fn func(context.Context) error) error {
	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.ServeStatus(serveCtx); err != nil {
			a.Logger().Error("status server failed", zap.Error(err))
		}
	}()
	err := fn(ctx)
	cancel()
	<-done
	if flushErr := a.FlushMetrics(); flushErr != nil {
		a.Logger().Warn("write metrics textfile", zap.Error(flushErr))
	}
	return err
}

func printSummary(cmd *cobra.Command, summary crawler.RunSummary) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}
	return nil
}
