package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/authcrawl/engine"
	"github.com/use-agent/authcrawl/models"
	"github.com/ysmood/gson"
)

// Render loads targetURL in a fresh incognito page and converts it.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard          – hard deadline on the entire render
//  2. Page context           – new incognito context + page, closed on return
//  3. Hooks                  – OnPageContextCreated (auth headers, ...)
//  4. Stealth injection      – mask navigator.webdriver etc.
//  5. Hijack mount           – block configured resource types
//  6. Navigate               – bounded by NavigationTimeout
//  7. Wait                   – DOM stable
//  8. Extract                – HTML, title, final URL, status
//  9. Convert                – cleaner pipeline to Markdown
//
// Steps 3-5 MUST happen before step 6: extra headers, stealth JS and
// resource blocking only apply to navigations started after they are set.
func (s *Scraper) Render(ctx context.Context, targetURL string, cfg models.EngineConfig) (*models.RenderResult, error) {
	if s.browser == nil {
		return nil, fmt.Errorf("scraper: browser not launched")
	}

	// ── 1. Timeout guard ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, s.scraperCfg.RenderTimeout)
	defer cancel()

	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	// ── 2. Fresh page context ─────────────────────────────────────────
	incognito, err := s.browser.Incognito()
	if err != nil {
		return nil, models.NewRenderError(models.ErrCodeNavigation, targetURL,
			"failed to create page context", err)
	}
	defer func() {
		if closeErr := incognito.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to dispose page context", "error", closeErr)
		}
	}()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewRenderError(models.ErrCodeNavigation, targetURL,
			"failed to open page", err)
	}

	// ── 3. Hooks ──────────────────────────────────────────────────────
	if err := s.hooks.PageContextCreated(ctx, &rodPageContext{page: page}); err != nil {
		return nil, models.NewRenderError(models.ErrCodeNavigation, targetURL,
			"page hook failed", err)
	}

	// ── 4. Stealth injection ──────────────────────────────────────────
	if s.scraperCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 5. Mount hijack router ────────────────────────────────────────
	if router := setupHijack(page, s.scraperCfg.BlockedResourceTypes); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 6. Navigate ───────────────────────────────────────────────────
	if err := p.Timeout(s.scraperCfg.NavigationTimeout).Navigate(targetURL); err != nil {
		return nil, engine.ClassifyRenderError(err, targetURL, "navigation to target URL failed")
	}

	// ── 7. Wait ───────────────────────────────────────────────────────
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		if ctx.Err() != nil {
			return nil, engine.ClassifyRenderError(stableErr, targetURL, "page did not settle before deadline")
		}
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", targetURL, "error", stableErr,
		)
	}

	// ── 8. Extract ────────────────────────────────────────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, engine.ClassifyRenderError(htmlErr, targetURL, "failed to extract page HTML")
	}

	statusCode := 0
	if res, evalErr := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); evalErr == nil {
		statusCode = res.Value.Int()
	}
	if statusCode == 401 || statusCode == 403 {
		slog.Warn("page rejected credentials", "url", targetURL, "status", statusCode)
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = targetURL
	}

	// ── 9. Convert ────────────────────────────────────────────────────
	doc, err := s.cleaner.Convert(rawHTML, finalURL, cfg)
	if err != nil {
		return nil, engine.ClassifyRenderError(err, targetURL, "content extraction failed")
	}

	title := doc.Title
	if title == "" {
		title = evalStringOrEmpty(p, `() => document.title`)
	}

	return &models.RenderResult{
		URL:        targetURL,
		FinalURL:   finalURL,
		Title:      title,
		StatusCode: statusCode,
		Markdown:   doc.Markdown,
		Links:      doc.Links,
	}, nil
}

// rodPageContext exposes a rod page to engine hooks.
type rodPageContext struct {
	page *rod.Page
}

func (pc *rodPageContext) SetExtraHeaders(headers map[string]string) error {
	// The page is discarded after the render, so the domain is never disabled.
	_ = pc.page.EnableDomain(&proto.NetworkEnable{})
	return proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(headers),
	}.Call(pc.page)
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
