package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/authcrawl/cleaner"
	"github.com/use-agent/authcrawl/config"
	"github.com/use-agent/authcrawl/engine"
)

// Scraper is the go-rod render backend. It owns one Chromium process for
// the lifetime of a run and renders every URL in a fresh incognito
// browser context.
type Scraper struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	hooks      engine.Hooks
	cleaner    *cleaner.Cleaner

	launcher    *launcher.Launcher
	browser     *rod.Browser
	activePages atomic.Int32
}

var _ engine.Backend = (*Scraper)(nil)

// NewScraper creates the backend. The browser is not launched until Launch.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, hooks engine.Hooks, cl *cleaner.Cleaner) *Scraper {
	return &Scraper{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		hooks:      hooks,
		cleaner:    cl,
	}
}

func (s *Scraper) Name() string { return "rod" }

// ActivePages returns the number of pages currently rendering.
func (s *Scraper) ActivePages() int {
	return int(s.activePages.Load())
}

// Launch starts Chromium and connects to it over CDP.
func (s *Scraper) Launch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := launcher.New().
		Headless(s.browserCfg.Headless).
		NoSandbox(s.browserCfg.NoSandbox)

	if s.browserCfg.BrowserBin != "" {
		l = l.Bin(s.browserCfg.BrowserBin)
	}
	if s.browserCfg.DefaultProxy != "" {
		l = l.Proxy(s.browserCfg.DefaultProxy)
	}

	// ── Automation / background flags ────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	// Launcher owns the process from here; Close must kill it even if
	// Connect fails.
	s.launcher = l

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("scraper: launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("scraper: connect to browser: %w", err)
	}
	s.browser = browser
	return nil
}

// Close closes the browser and kills the launched process.
// Call this on shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() error {
	var closeErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			closeErr = fmt.Errorf("scraper: close browser: %w", err)
		}
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
	return closeErr
}
