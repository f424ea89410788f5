package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"review-harvester/internal/browser"
	"review-harvester/internal/captcha"
	"review-harvester/internal/config"
	"review-harvester/internal/extractor"
	"review-harvester/internal/logging"
	"review-harvester/internal/navigator"
	"review-harvester/internal/session"
	"review-harvester/internal/sink"
	"review-harvester/internal/targets"
)

var scrapeFlags struct {
	urls           string
	out            string
	selectors      string
	headful        bool
	blockResources bool
	maxReviews     int
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Harvest reviews for every target URL",
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeFlags.urls, "urls", "", "file with one target URL per line")
	scrapeCmd.Flags().StringVar(&scrapeFlags.out, "out", "", "JSONL output file")
	scrapeCmd.Flags().StringVar(&scrapeFlags.selectors, "selectors", "", "site selector config (YAML)")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.headful, "headful", false, "show the browser window (lets a human solve CAPTCHAs)")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.blockResources, "block-resources", true, "block images, fonts and styles to speed up loads")
	scrapeCmd.Flags().IntVar(&scrapeFlags.maxReviews, "max-reviews", 0, "stop after this many new reviews per place (0 = all)")

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	logging.Init()
	log := logging.For("scrape")

	cfg := config.Load()
	if cmd.Flags().Changed("urls") {
		cfg.URLsPath = scrapeFlags.urls
	}
	if cmd.Flags().Changed("out") {
		cfg.OutPath = scrapeFlags.out
	}
	if cmd.Flags().Changed("selectors") {
		cfg.SelectorsPath = scrapeFlags.selectors
	}
	if cmd.Flags().Changed("headful") {
		cfg.Headful = scrapeFlags.headful
	}
	if cmd.Flags().Changed("block-resources") {
		cfg.BlockResources = scrapeFlags.blockResources
	}
	if cmd.Flags().Changed("max-reviews") {
		cfg.MaxReviews = scrapeFlags.maxReviews
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	site, err := config.LoadSiteConfig(cfg.SelectorsPath)
	if err != nil {
		return err
	}
	urls, err := targets.Load(cfg.URLsPath)
	if err != nil {
		return err
	}

	seen, err := sink.LoadSeenKeys(cfg.OutPath)
	if err != nil {
		return err
	}
	log.Info().Int("targets", len(urls)).Int("known_reviews", len(seen)).
		Str("out", cfg.OutPath).Msg("starting harvest")

	out, err := sink.OpenJSONL(cfg.OutPath)
	if err != nil {
		return err
	}
	defer out.Close()

	br, err := browser.Launch(cfg.Headful)
	if err != nil {
		return err
	}
	defer br.MustClose()

	page, err := browser.NewPage(br)
	if err != nil {
		return err
	}
	if cfg.BlockResources {
		stop, err := browser.AttachFilter(page)
		if err != nil {
			return err
		}
		defer stop()
	}

	nav := navigator.New(page, site, navigator.Options{
		NavTimeout:      cfg.NavTimeout,
		ScrollDelay:     cfg.ScrollDelay,
		ScrollStepRatio: cfg.ScrollStepRatio,
	})
	guard := captcha.NewGuard(page, site.Captcha, cfg.CaptchaPoll)
	ext := extractor.New(site)
	limiter := rate.NewLimiter(rate.Every(cfg.PageDelay), 1)

	ctrl := session.New(nav, guard, ext, out, limiter, seen, session.Config{
		MaxReviews:      cfg.MaxReviews,
		MaxAttempts:     cfg.MaxAttempts,
		NoProgressLimit: cfg.NoProgressLimit,
		MaxRounds:       cfg.MaxScrollRounds,
		RetryBackoff:    cfg.RetryBackoff,
		Headful:         cfg.Headful,
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rep := ctrl.Run(ctx, urls)

	failed := rep.Failed()
	log.Info().Int("accepted", rep.Accepted).
		Int("skipped", rep.Skipped).
		Int("targets", len(rep.Targets)).
		Int("failed_targets", len(failed)).
		Int("written", out.Written()).
		Msg("harvest finished")
	for _, f := range failed {
		log.Warn().Str("target", f.URL).Err(f.Err).Msg("target did not complete")
	}
	return nil
}
