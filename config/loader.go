package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadFile reads a YAML configuration file. Precedence, lowest first:
// built-in defaults, the file, AUTHCRAWL_* environment variables.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnv(cfg)
	return cfg, nil
}

// Validate checks the values the run cannot start without.
func (c *Config) Validate() error {
	switch c.Scraper.Backend {
	case "rod", "http":
	default:
		return fmt.Errorf("config: unknown backend %q (want rod or http)", c.Scraper.Backend)
	}
	switch c.Scraper.ExtractMode {
	case "raw", "readability":
	default:
		return fmt.Errorf("config: unknown extract mode %q (want raw or readability)", c.Scraper.ExtractMode)
	}
	switch c.Crawl.CacheMode {
	case "bypass", "use":
	default:
		return fmt.Errorf("config: unknown cache mode %q (want bypass or use)", c.Crawl.CacheMode)
	}
	if c.Scraper.RenderTimeout <= 0 {
		return errors.New("config: render timeout must be positive")
	}
	if c.Scraper.NavigationTimeout <= 0 {
		return errors.New("config: navigation timeout must be positive")
	}
	if c.Crawl.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Crawl.Concurrency)
	}
	if len(c.Crawl.StartURLs) == 0 {
		return errors.New("config: no start URLs")
	}
	return nil
}
