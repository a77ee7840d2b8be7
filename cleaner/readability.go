package cleaner

import (
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
)

// minMainTextRunes is how much text readability must find before its
// output replaces the page. Login walls and short status pages fall below.
const minMainTextRunes = 50

// mainContent is the article readability found in a page.
type mainContent struct {
	Title string
	HTML  string
}

// extractMainContent runs readability on htmlDoc. ok is false when
// readability fails or finds too little text; the caller keeps its input.
func extractMainContent(htmlDoc string, pageURL *url.URL) (mainContent, bool) {
	article, err := readability.FromReader(strings.NewReader(htmlDoc), pageURL)
	if err != nil {
		slog.Warn("readability failed, using full page", "url", pageURL.String(), "error", err)
		return mainContent{}, false
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(article.TextContent)); n < minMainTextRunes {
		slog.Debug("readability found too little text, using full page",
			"url", pageURL.String(), "runes", n)
		return mainContent{}, false
	}

	return mainContent{
		Title: strings.TrimSpace(article.Title),
		HTML:  article.Content,
	}, true
}
