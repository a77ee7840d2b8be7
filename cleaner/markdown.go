package cleaner

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var (
	blankRuns       = regexp.MustCompile(`\n{3,}`)
	whitespaceLines = regexp.MustCompile(`(?m)^[ \t]+$`)
)

// newMarkdownConverter builds the converter shared by every render.
// It is safe for concurrent use.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			strikethrough.NewStrikethroughPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// renderMarkdown converts htmlDoc, resolving relative link and image URLs
// against pageURL, and normalizes whitespace so records compare stably
// across renders.
func renderMarkdown(conv *converter.Converter, htmlDoc, pageURL string) (string, error) {
	md, err := conv.ConvertString(htmlDoc, converter.WithDomain(pageURL))
	if err != nil {
		return "", err
	}
	md = whitespaceLines.ReplaceAllString(md, "")
	md = blankRuns.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md), nil
}
