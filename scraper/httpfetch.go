package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/authcrawl/cleaner"
	"github.com/use-agent/authcrawl/config"
	"github.com/use-agent/authcrawl/engine"
	"github.com/use-agent/authcrawl/models"
	"golang.org/x/net/html"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBody caps how much of a response is read.
const maxBody = 10 << 20

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1.
// Go's http.Transport cannot speak h2 over a utls connection.
var chromeH1Spec *tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = &spec
}

// HTTPBackend renders pages without a browser: one GET per URL with a
// Chrome TLS fingerprint, no JavaScript. Page hooks run against the
// outgoing request's headers.
type HTTPBackend struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	hooks      engine.Hooks
	cleaner    *cleaner.Cleaner

	client *http.Client
}

var _ engine.Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates the backend. The transport is built in Launch.
func NewHTTPBackend(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, hooks engine.Hooks, cl *cleaner.Cleaner) *HTTPBackend {
	return &HTTPBackend{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		hooks:      hooks,
		cleaner:    cl,
	}
}

func (b *HTTPBackend) Name() string { return "http" }

// Launch builds the HTTP client.
func (b *HTTPBackend) Launch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	transport := &http.Transport{
		DialTLSContext:    dialTLSChrome,
		ForceAttemptHTTP2: false,
	}
	if b.browserCfg.DefaultProxy != "" {
		proxyURL, err := url.Parse(b.browserCfg.DefaultProxy)
		if err != nil {
			return fmt.Errorf("httpfetch: parse proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	b.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	return nil
}

// Close drops idle connections.
func (b *HTTPBackend) Close() error {
	if b.client != nil {
		b.client.CloseIdleConnections()
		b.client = nil
	}
	return nil
}

// Render fetches targetURL and converts the body.
func (b *HTTPBackend) Render(ctx context.Context, targetURL string, cfg models.EngineConfig) (*models.RenderResult, error) {
	if b.client == nil {
		return nil, fmt.Errorf("httpfetch: client not launched")
	}

	ctx, cancel := context.WithTimeout(ctx, b.scraperCfg.RenderTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, models.NewRenderError(models.ErrCodeNavigation, targetURL, "invalid URL", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	if err := b.hooks.PageContextCreated(ctx, headerContext{header: req.Header}); err != nil {
		return nil, models.NewRenderError(models.ErrCodeNavigation, targetURL, "page hook failed", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, engine.ClassifyRenderError(err, targetURL, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, engine.ClassifyRenderError(err, targetURL, "failed to read body")
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		slog.Warn("page rejected credentials", "url", targetURL, "status", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTMLContentType(ct) {
		return nil, models.NewRenderError(models.ErrCodeReadability, targetURL,
			fmt.Sprintf("unsupported content type %q", ct), nil)
	}
	if cfg.Verbose && looksScriptOnly(body) {
		slog.Debug("page has little static text, it may need the rod backend", "url", targetURL)
	}

	finalURL := resp.Request.URL.String()
	doc, err := b.cleaner.Convert(string(body), finalURL, cfg)
	if err != nil {
		return nil, engine.ClassifyRenderError(err, targetURL, "content extraction failed")
	}

	return &models.RenderResult{
		URL:        targetURL,
		FinalURL:   finalURL,
		Title:      doc.Title,
		StatusCode: resp.StatusCode,
		Markdown:   doc.Markdown,
		Links:      doc.Links,
	}, nil
}

// headerContext exposes an outgoing request's headers to engine hooks.
type headerContext struct {
	header http.Header
}

func (hc headerContext) SetExtraHeaders(headers map[string]string) error {
	for k, v := range headers {
		hc.header.Set(k, v)
	}
	return nil
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via utls.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	var tlsConn *tls.UConn
	if chromeH1Spec != nil {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(chromeH1Spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("httpfetch: apply tls spec: %w", err)
		}
	} else {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host, NextProtos: []string{"http/1.1"}}, tls.HelloGolang)
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// looksScriptOnly reports whether the body has scripts but almost no
// visible text, which usually means a client-rendered page.
func looksScriptOnly(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), []byte("<script")) && len(visibleText(body)) < 200
}

// visibleText extracts the text inside <body>, skipping script/style/noscript.
func visibleText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
