package cleaner

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/authcrawl/models"
)

// Extract modes.
const (
	ModeRaw         = "raw"
	ModeReadability = "readability"
)

// Cleaner turns rendered HTML into Markdown.
//
// The converter is created once and reused across all renders (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
	mode        string
	selector    cascadia.Matcher
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithExtractMode selects ModeRaw (default) or ModeReadability.
func WithExtractMode(mode string) Option {
	return func(c *Cleaner) {
		c.mode = mode
	}
}

// WithContentSelector restricts conversion to elements matching a CSS
// selector group. An invalid selector is logged and ignored.
func WithContentSelector(selector string) Option {
	return func(c *Cleaner) {
		if selector == "" {
			c.selector = nil
			return
		}
		sel, err := compileSelector(selector)
		if err != nil {
			slog.Warn("cleaner: invalid content selector, converting full pages",
				"selector", selector, "error", err)
			return
		}
		c.selector = sel
	}
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner(opts ...Option) *Cleaner {
	c := &Cleaner{
		mdConverter: newMarkdownConverter(),
		mode:        ModeRaw,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Document is the cleaned form of one page.
type Document struct {
	Title    string
	Markdown string
	Links    models.LinksResult
}

// Convert runs the pipeline on rawHTML rendered from sourceURL.
//
// Flow:
//  1. Collect links from the full page (before any filtering).
//  2. Narrow to the content selector, if configured and matching.
//  3. Unwrap external / social-media links as cfg asks.
//  4. Readability extraction (ModeReadability only; keeps step 3's HTML on failure).
//  5. Convert to Markdown.
func (c *Cleaner) Convert(rawHTML, sourceURL string, cfg models.EngineConfig) (*Document, error) {
	links := ExtractLinks(rawHTML, sourceURL)
	title := pageTitle(rawHTML)

	html := rawHTML
	if c.selector != nil {
		selected, ok, err := selectContent(html, c.selector)
		switch {
		case err != nil:
			slog.Warn("cleaner: content selector failed, using full page", "url", sourceURL, "error", err)
		case ok:
			html = selected
		}
	}

	html = UnwrapLinks(html, sourceURL, LinkFilter{
		External:    cfg.ExcludeExternalLinks,
		SocialMedia: cfg.ExcludeSocialMediaLinks,
	})

	if c.mode == ModeReadability {
		if pageURL, err := url.Parse(sourceURL); err == nil {
			if main, ok := extractMainContent(html, pageURL); ok {
				html = main.HTML
				if main.Title != "" {
					title = main.Title
				}
			}
		}
	}

	md, err := renderMarkdown(c.mdConverter, html, sourceURL)
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeReadability,
			"markdown conversion failed",
			err,
		)
	}

	return &Document{
		Title:    title,
		Markdown: md,
		Links:    links,
	}, nil
}

// pageTitle returns the trimmed <title> text, or "".
func pageTitle(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
