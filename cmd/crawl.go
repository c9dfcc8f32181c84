package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ragops/harvester/internal/crawler"
)

func newCrawlCmd() *cobra.Command {
	var (
		seedURL        string
		maxPages       int
		maxConcurrency int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a one-shot crawl from the command line",
		Long: `Crawls the site rooted at --seed-url synchronously, converts each
page to markdown, and writes the pages to the configured storage
backend. The command exits once the crawl and indexing finish.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if seedURL == "" {
				return errors.New("--seed-url is required")
			}

			cfg := a.Config()
			if maxPages < 0 {
				maxPages = cfg.Crawler.MaxPages
			}
			if maxConcurrency <= 0 {
				maxConcurrency = cfg.Crawler.MaxConcurrency
			}

			runID, err := a.IDGen().NewID()
			if err != nil {
				return fmt.Errorf("generate run id: %w", err)
			}
			run := crawler.Run{
				ID:             runID,
				SeedURL:        seedURL,
				MaxPages:       maxPages,
				MaxConcurrency: maxConcurrency,
				Status:         crawler.RunStatusQueued,
				Submitted:      a.Clock().Now(),
			}
			if err := a.Runs().CreateRun(cmd.Context(), run); err != nil {
				return fmt.Errorf("create run: %w", err)
			}

			result, err := a.Crawl(cmd.Context(), run)
			if err != nil {
				return fmt.Errorf("crawl %s: %w", seedURL, err)
			}

			elapsed := result.Stats.FinishedAt.Sub(result.Stats.StartedAt)
			a.Logger().Info("crawl finished",
				zap.String("run_id", runID),
				zap.String("seed_url", seedURL),
				zap.Int("pages", len(result.Pages)),
				zap.Int("failed", len(result.FailedURLs)),
				zap.Int("skipped", len(result.SkippedURLs)),
				zap.Duration("elapsed", elapsed),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "crawled %d pages (%d failed, %d skipped) in %s\n",
				len(result.Pages), len(result.FailedURLs), len(result.SkippedURLs), elapsed)
			return nil
		},
	}

	cmd.Flags().StringVar(&seedURL, "seed-url", "", "absolute http(s) URL to start crawling from")
	cmd.Flags().IntVar(&maxPages, "max-pages", -1, "page budget for the crawl (0 allowed; negative uses the configured default)")
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "initial worker concurrency (0 uses the configured default)")

	return cmd
}
