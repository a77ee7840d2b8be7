package cleaner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// socialMediaDomains are hosts whose links are dropped when social-media
// links are excluded. Subdomains match too.
var socialMediaDomains = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"instagram.com",
	"pinterest.com",
	"tiktok.com",
	"snapchat.com",
	"reddit.com",
	"youtube.com",
	"threads.net",
	"mastodon.social",
}

// LinkFilter selects which anchors UnwrapLinks removes.
type LinkFilter struct {
	External    bool
	SocialMedia bool
}

// UnwrapLinks replaces matching <a> elements with their inner content, so
// the link text survives in the Markdown but the URL does not.
//
// Relative links are internal. If neither filter is set, or the HTML
// cannot be parsed, the input is returned unchanged.
func UnwrapLinks(html, sourceURL string, f LinkFilter) string {
	if !f.External && !f.SocialMedia {
		return html
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return html
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		host := strings.ToLower(resolved.Hostname())

		drop := (f.External && !strings.EqualFold(host, base.Hostname())) ||
			(f.SocialMedia && isSocialMediaHost(host))
		if drop {
			s.ReplaceWithSelection(s.Contents())
		}
	})

	result, err := doc.Html()
	if err != nil {
		return html
	}
	return result
}

// isSocialMediaHost checks host and its parent domains against socialMediaDomains.
func isSocialMediaHost(host string) bool {
	for _, d := range socialMediaDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
