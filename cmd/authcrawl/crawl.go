package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/authcrawl/auth"
	"github.com/use-agent/authcrawl/cache"
	"github.com/use-agent/authcrawl/cleaner"
	"github.com/use-agent/authcrawl/config"
	"github.com/use-agent/authcrawl/crawl"
	"github.com/use-agent/authcrawl/engine"
	"github.com/use-agent/authcrawl/logging"
	"github.com/use-agent/authcrawl/models"
	"github.com/use-agent/authcrawl/output"
	"github.com/use-agent/authcrawl/scraper"
)

// crawlOptions holds flag values for the crawl command.
type crawlOptions struct {
	username       string
	password       string
	urls           []string
	allowedDomains []string
	output         string
	backend        string
	concurrency    int
	cacheMode      string
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}

	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Render start URLs with Basic-Auth and write Markdown records",
		Example: `  authcrawl crawl -u authorized -p password001
  authcrawl crawl --backend http -o pages.jsonl https://example.com/private`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.urls = append(opts.urls, args...)
			return runCrawl(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Basic-Auth username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "Basic-Auth password")
	cmd.Flags().StringSliceVar(&opts.urls, "url", nil, "Start URL (repeatable)")
	cmd.Flags().StringSliceVar(&opts.allowedDomains, "allowed-domain", nil, "Allowed domain (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `Output JSON Lines file ("-" for stdout)`)
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Render backend: rod or http")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "URLs dispatched at once")
	cmd.Flags().StringVar(&opts.cacheMode, "cache-mode", "", "Render cache: bypass or use")

	return cmd
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, opts)

	logging.Init(os.Stderr, cfg.Log, cfg.Crawl.Verbose)

	if err := cfg.Validate(); err != nil {
		return err
	}

	creds := auth.Credentials{
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
	}
	warnAnonymous(slog.Default(), creds)
	hook, err := auth.BuildHook(creds)
	if err != nil {
		return err
	}
	hooks := engine.Hooks{OnPageContextCreated: hook}

	cl := cleaner.NewCleaner(
		cleaner.WithExtractMode(cfg.Scraper.ExtractMode),
		cleaner.WithContentSelector(cfg.Scraper.ContentSelector),
	)

	handle := engine.NewHandle(
		newBackend(cfg, hooks, cl),
		engine.WithCache(cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)),
	)
	coordinator := crawl.NewCoordinator(handle)
	adapter := crawl.NewAdapter(handle, coordinator,
		crawl.WithVerbose(cfg.Crawl.Verbose),
		crawl.WithCacheMode(models.CacheMode(cfg.Crawl.CacheMode)),
		crawl.WithRenderTimeout(cfg.Scraper.RenderTimeout),
	)

	sink, err := output.Open(cfg.Crawl.Output)
	if err != nil {
		return err
	}

	dispatcher := crawl.NewDispatcher(coordinator, adapter, sink,
		crawl.WithAllowedDomains(cfg.Crawl.AllowedDomains),
		crawl.WithConcurrency(cfg.Crawl.Concurrency),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting crawl",
		"backend", handle.Backend(),
		"user", cfg.Auth.Username,
		"start_urls", len(cfg.Crawl.StartURLs),
	)

	stats, err := dispatcher.Run(ctx, cfg.Crawl.StartURLs)
	if errors.Is(err, context.Canceled) {
		slog.Warn("crawl interrupted, partial output written", "dispatched", stats.Dispatched)
		return nil
	}
	if err != nil {
		return fmt.Errorf("crawl failed (%s): %w", models.CodeOf(err), err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "crawled %d pages: %d ok, %d failed, %d filtered\n",
		stats.Dispatched, stats.Succeeded, stats.Failed, stats.Filtered)
	return nil
}

// warnAnonymous logs a warning when no credentials are configured.
// It reports whether it did.
func warnAnonymous(logger *slog.Logger, creds auth.Credentials) bool {
	if !creds.Anonymous() {
		return false
	}
	logger.Warn("no credentials configured, pages get an empty Basic-Auth header",
		"hint", "set --username/--password or AUTHCRAWL_USERNAME/AUTHCRAWL_PASSWORD")
	return true
}

// loadConfig reads --config if given, otherwise defaults plus environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

// applyFlags overrides cfg with the flags that were set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *crawlOptions) {
	flags := cmd.Flags()
	if flags.Changed("username") {
		cfg.Auth.Username = opts.username
	}
	if flags.Changed("password") {
		cfg.Auth.Password = opts.password
	}
	if len(opts.urls) > 0 {
		cfg.Crawl.StartURLs = opts.urls
	}
	if flags.Changed("allowed-domain") {
		cfg.Crawl.AllowedDomains = opts.allowedDomains
	}
	if flags.Changed("output") {
		cfg.Crawl.Output = opts.output
	}
	if flags.Changed("backend") {
		cfg.Scraper.Backend = opts.backend
	}
	if flags.Changed("concurrency") {
		cfg.Crawl.Concurrency = opts.concurrency
	}
	if flags.Changed("cache-mode") {
		cfg.Crawl.CacheMode = opts.cacheMode
	}
	if v, _ := flags.GetBool("verbose"); v {
		cfg.Crawl.Verbose = true
	}
}

func newBackend(cfg *config.Config, hooks engine.Hooks, cl *cleaner.Cleaner) engine.Backend {
	if cfg.Scraper.Backend == "http" {
		return scraper.NewHTTPBackend(cfg.Browser, cfg.Scraper, hooks, cl)
	}
	return scraper.NewScraper(cfg.Browser, cfg.Scraper, hooks, cl)
}
