package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/subsidy-portal/internal/crawl"
	"github.com/JakeFAU/subsidy-portal/internal/fetcher"
	"github.com/JakeFAU/subsidy-portal/internal/logging"
	"github.com/JakeFAU/subsidy-portal/internal/policy/ratelimit"
)

type crawlFlags struct {
	industry string
	area     string
	page     int
	size     int
}

// newCrawlCmd fetches one page of subsidy notices and prints it as JSON.
// Without a partner key the canned notices are printed instead.
func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch one page of subsidy notices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.industry, "industry", crawl.AllLabel, "industry label")
	cmd.Flags().StringVar(&flags.area, "area", "", "area label")
	cmd.Flags().IntVar(&flags.page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&flags.size, "size", 10, "items per page")
	return cmd
}

func runCrawl(cmd *cobra.Command, flags crawlFlags) error {
	cfg, err := resolveConfig(cmd.Context())
	if err != nil {
		return err
	}
	if flags.page < 1 || flags.size < 1 {
		return fmt.Errorf("page and size must be positive")
	}

	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		Service:     cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	f := fetcher.New(
		fetcher.NewClient(cfg.HTTP.Timeout(), crawl.UserAgent),
		cfg.Retry.Partner,
		fetcher.WithWaiter(ratelimit.New(cfg.RateLimit.Limiter())),
		fetcher.WithLogger(logger),
	)
	svc := crawl.NewService(cfg.CrawlService(), f, logger)

	page, err := svc.Crawl(cmd.Context(), crawl.PageRequest{
		Industry: flags.industry,
		Area:     flags.area,
		Page:     flags.page,
		Size:     flags.size,
	})
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	logger.Info("crawl finished",
		zap.Int("items", len(page.Items)),
		zap.Bool("degraded", page.Degradation.Degraded),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(page)
}
