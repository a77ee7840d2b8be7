package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "rod", cfg.Scraper.Backend)
	assert.Equal(t, []string{"testpages.eviltester.com"}, cfg.Crawl.AllowedDomains)
	assert.Equal(t, "bypass", cfg.Crawl.CacheMode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTHCRAWL_USERNAME", "authorized")
	t.Setenv("AUTHCRAWL_PASSWORD", "password001")
	t.Setenv("AUTHCRAWL_BACKEND", "http")
	t.Setenv("AUTHCRAWL_CONCURRENCY", "4")
	t.Setenv("AUTHCRAWL_RENDER_TIMEOUT", "15s")
	t.Setenv("AUTHCRAWL_START_URLS", "https://a.test/, https://b.test/ ,")
	t.Setenv("AUTHCRAWL_HEADLESS", "false")
	t.Setenv("AUTHCRAWL_CACHE_TTL", "not-a-duration")

	cfg := Load()
	assert.Equal(t, "authorized", cfg.Auth.Username)
	assert.Equal(t, "password001", cfg.Auth.Password)
	assert.Equal(t, "http", cfg.Scraper.Backend)
	assert.Equal(t, 4, cfg.Crawl.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Scraper.RenderTimeout)
	assert.Equal(t, []string{"https://a.test/", "https://b.test/"}, cfg.Crawl.StartURLs)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, time.Hour, cfg.Cache.TTL, "unparsable values keep the default")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authcrawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scraper:
  backend: http
  navigation_timeout: 5s
crawl:
  start_urls:
    - https://x.test/a
  allowed_domains: [x.test]
  concurrency: 2
auth:
  username: fileuser
  password: filepass
log:
  format: json
`), 0o600))
	t.Setenv("AUTHCRAWL_PASSWORD", "envpass")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http", cfg.Scraper.Backend)
	assert.Equal(t, 5*time.Second, cfg.Scraper.NavigationTimeout)
	assert.Equal(t, 60*time.Second, cfg.Scraper.RenderTimeout, "unset keys keep defaults")
	assert.Equal(t, []string{"https://x.test/a"}, cfg.Crawl.StartURLs)
	assert.Equal(t, 2, cfg.Crawl.Concurrency)
	assert.Equal(t, "fileuser", cfg.Auth.Username)
	assert.Equal(t, "envpass", cfg.Auth.Password, "environment beats the file")
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("crawl: [unclosed"), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Scraper.Backend = "chromedp" }},
		{"unknown extract mode", func(c *Config) { c.Scraper.ExtractMode = "auto" }},
		{"unknown cache mode", func(c *Config) { c.Crawl.CacheMode = "write" }},
		{"zero render timeout", func(c *Config) { c.Scraper.RenderTimeout = 0 }},
		{"negative navigation timeout", func(c *Config) { c.Scraper.NavigationTimeout = -time.Second }},
		{"zero concurrency", func(c *Config) { c.Crawl.Concurrency = 0 }},
		{"no start urls", func(c *Config) { c.Crawl.StartURLs = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
