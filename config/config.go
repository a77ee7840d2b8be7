package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Scraper ScraperConfig `yaml:"scraper"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Auth    AuthConfig    `yaml:"auth"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// DefaultProxy is the proxy URL for all requests.
	DefaultProxy string `yaml:"proxy"`

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`
}

// ScraperConfig controls rendering behavior.
type ScraperConfig struct {
	// Backend selects the render engine: "rod" (browser) or "http" (no JS).
	Backend string `yaml:"backend"` // default: "rod"

	// RenderTimeout bounds one render end to end.
	RenderTimeout time.Duration `yaml:"render_timeout"` // default: 60s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 30s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string `yaml:"blocked_resources"`

	// Stealth enables anti-bot-detection evasions.
	Stealth bool `yaml:"stealth"`

	// ExtractMode is "raw" (whole page, default) or "readability".
	ExtractMode string `yaml:"extract_mode"`

	// ContentSelector, if set, limits conversion to matching elements.
	ContentSelector string `yaml:"content_selector"`
}

// CrawlConfig controls the crawl run.
type CrawlConfig struct {
	StartURLs      []string `yaml:"start_urls"`
	AllowedDomains []string `yaml:"allowed_domains"`

	// Concurrency is how many URLs are dispatched at once. Renders on the
	// single engine are serialized regardless.
	Concurrency int `yaml:"concurrency"` // default: 1

	// Output is the JSON Lines file records are written to; "-" is stdout.
	Output string `yaml:"output"` // default: "-"

	// Verbose enables per-render debug logging.
	Verbose bool `yaml:"verbose"`

	// CacheMode is "bypass" (default) or "use".
	CacheMode string `yaml:"cache_mode"`
}

// AuthConfig holds the Basic-Auth credentials injected into every page.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CacheConfig controls the render result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int `yaml:"max_entries"` // default: 1000

	// TTL is how long a cached result stays valid.
	TTL time.Duration `yaml:"ttl"` // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "text"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless: true,
		},
		Scraper: ScraperConfig{
			Backend:              "rod",
			RenderTimeout:        60 * time.Second,
			NavigationTimeout:    30 * time.Second,
			BlockedResourceTypes: []string{"Image", "Font", "Media"},
			ExtractMode:          "raw",
		},
		Crawl: CrawlConfig{
			StartURLs:      []string{"https://testpages.eviltester.com/styled/auth/basic-auth-results.html"},
			AllowedDomains: []string{"testpages.eviltester.com"},
			Concurrency:    1,
			Output:         "-",
			CacheMode:      "bypass",
		},
		Cache: CacheConfig{
			MaxEntries: 1000,
			TTL:        time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from environment variables on top of the defaults.
func Load() *Config {
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

// applyEnv overrides cfg with every AUTHCRAWL_* variable that is set.
func applyEnv(cfg *Config) {
	cfg.Browser.Headless = envBoolOr("AUTHCRAWL_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.DefaultProxy = envOr("AUTHCRAWL_PROXY", cfg.Browser.DefaultProxy)
	cfg.Browser.NoSandbox = envBoolOr("AUTHCRAWL_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.BrowserBin = envOr("AUTHCRAWL_BROWSER_BIN", cfg.Browser.BrowserBin)

	cfg.Scraper.Backend = envOr("AUTHCRAWL_BACKEND", cfg.Scraper.Backend)
	cfg.Scraper.RenderTimeout = envDurationOr("AUTHCRAWL_RENDER_TIMEOUT", cfg.Scraper.RenderTimeout)
	cfg.Scraper.NavigationTimeout = envDurationOr("AUTHCRAWL_NAV_TIMEOUT", cfg.Scraper.NavigationTimeout)
	cfg.Scraper.BlockedResourceTypes = envSliceOr("AUTHCRAWL_BLOCKED_RESOURCES", cfg.Scraper.BlockedResourceTypes)
	cfg.Scraper.Stealth = envBoolOr("AUTHCRAWL_STEALTH", cfg.Scraper.Stealth)
	cfg.Scraper.ExtractMode = envOr("AUTHCRAWL_EXTRACT_MODE", cfg.Scraper.ExtractMode)
	cfg.Scraper.ContentSelector = envOr("AUTHCRAWL_CONTENT_SELECTOR", cfg.Scraper.ContentSelector)

	cfg.Crawl.StartURLs = envSliceOr("AUTHCRAWL_START_URLS", cfg.Crawl.StartURLs)
	cfg.Crawl.AllowedDomains = envSliceOr("AUTHCRAWL_ALLOWED_DOMAINS", cfg.Crawl.AllowedDomains)
	cfg.Crawl.Concurrency = envIntOr("AUTHCRAWL_CONCURRENCY", cfg.Crawl.Concurrency)
	cfg.Crawl.Output = envOr("AUTHCRAWL_OUTPUT", cfg.Crawl.Output)
	cfg.Crawl.Verbose = envBoolOr("AUTHCRAWL_VERBOSE", cfg.Crawl.Verbose)
	cfg.Crawl.CacheMode = envOr("AUTHCRAWL_CACHE_MODE", cfg.Crawl.CacheMode)

	cfg.Auth.Username = envOr("AUTHCRAWL_USERNAME", cfg.Auth.Username)
	cfg.Auth.Password = envOr("AUTHCRAWL_PASSWORD", cfg.Auth.Password)

	cfg.Cache.MaxEntries = envIntOr("AUTHCRAWL_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.TTL = envDurationOr("AUTHCRAWL_CACHE_TTL", cfg.Cache.TTL)

	cfg.Log.Level = envOr("AUTHCRAWL_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("AUTHCRAWL_LOG_FORMAT", cfg.Log.Format)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
