package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/castcrawler/internal/config"
	"github.com/JakeFAU/castcrawler/internal/crawler"
	"github.com/JakeFAU/castcrawler/internal/credit"
	"github.com/JakeFAU/castcrawler/internal/fetcher/headless"
	"github.com/JakeFAU/castcrawler/internal/publisher"
	"github.com/JakeFAU/castcrawler/internal/telemetry"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var (
		seed      string
		maxActors int
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the seed movie's cast and store every actor credit",
		Long: `Fetches the seed title page, its full credits page and every linked
actor page, then stores one (actor, movie_or_TV_name) row per filmography
entry. With the default csv driver the rows land in movies.csv.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			crawlCfg := crawlerConfig(appInstance.GetConfig())
			if cmd.Flags().Changed("seed") {
				crawlCfg.SeedURL = seed
			}
			if cmd.Flags().Changed("max-actors") {
				crawlCfg.MaxActors = maxActors
			}
			return runCrawl(cmd, appInstance, crawlCfg)
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "movie title page to start from (overrides crawler.seed_url)")
	cmd.Flags().IntVar(&maxActors, "max-actors", 0, "maximum actor pages to visit, 0 for all (overrides crawler.max_actors)")
	return cmd
}

func runCrawl(cmd *cobra.Command, appInstance App, crawlCfg crawler.Config) error {
	ctx, span := telemetry.Tracer().Start(cmd.Context(), "castcrawler.crawl")
	defer span.End()
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()

	transport, closeTransport, err := buildTransport(crawlCfg, cfg.Headless)
	if err != nil {
		return err
	}
	defer closeTransport()

	spider, err := crawler.NewSpider(crawlCfg, transport, nil, nil, logger)
	if err != nil {
		return fmt.Errorf("init spider: %w", err)
	}
	run, credits, err := spider.Run(ctx)
	if err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}

	if err := appInstance.GetStore().SaveRun(ctx, run, credits); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	event := publisher.NewRunCompleted(run, credits)
	msgID, err := appInstance.GetPublisher().Publish(ctx, cfg.PubSub.Topic, event)
	if err != nil {
		// The credits are already stored; a lost notification is not fatal.
		logger.Warn("Failed to publish run event", zap.String("run_id", run.ID), zap.Error(err))
	} else {
		logger.Info("Run event published", zap.String("run_id", run.ID), zap.String("message_id", msgID))
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d credits from %d actors (%d pages, %d failures)\n",
		run.ID, len(credits), credit.Actors(credits), run.Pages, run.Failures)
	return err
}

func crawlerConfig(cfg config.Config) crawler.Config {
	c := cfg.Crawler
	s := cfg.Selectors
	return crawler.Config{
		SeedURL:        c.SeedURL,
		CreditsSuffix:  c.CreditsSuffix,
		AllowedDomains: c.AllowedDomains,
		UserAgent:      c.UserAgent,
		RespectRobots:  c.RespectRobots,
		Parallelism:    c.Parallelism,
		Delay:          c.Delay,
		RandomDelay:    c.RandomDelay,
		RequestTimeout: c.RequestTimeout,
		MaxActors:      c.MaxActors,
		Selectors: crawler.Selectors{
			SeedTitle:      s.SeedTitle,
			ActorLink:      s.ActorLink,
			ActorName:      s.ActorName,
			FilmographyRow: s.FilmographyRow,
			CreditTitle:    s.CreditTitle,
		},
	}
}

// buildTransport returns the pooled transport, wrapped by the headless
// renderer when enabled, and a func that releases it.
func buildTransport(crawlCfg crawler.Config, hc config.HeadlessConfig) (http.RoundTripper, func(), error) {
	base := crawler.NewHTTPTransport(crawlCfg)
	if !hc.Enabled {
		return base, base.CloseIdleConnections, nil
	}
	ht, err := headless.NewTransport(headless.Config{
		MaxParallel:       hc.MaxParallel,
		UserAgent:         crawlCfg.UserAgent,
		NavigationTimeout: hc.NavTimeout,
	}, base)
	if err != nil {
		return nil, nil, fmt.Errorf("init headless transport: %w", err)
	}
	return ht, func() {
		ht.Close()
		base.CloseIdleConnections()
	}, nil
}
