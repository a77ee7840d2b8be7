package cleaner

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// compileSelector parses a selector group such as "main, #content".
func compileSelector(selector string) (cascadia.Matcher, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("cleaner: parse selector %q: %w", selector, err)
	}
	return sel, nil
}

// selectContent returns the outer HTML of the outermost elements matching
// sel, in document order. A match nested inside another match is skipped
// so its text is not emitted twice. ok is false when nothing matched.
func selectContent(rawHTML string, sel cascadia.Matcher) (out string, ok bool, err error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", false, fmt.Errorf("cleaner: parse html: %w", err)
	}

	matches := cascadia.QueryAll(doc, sel)
	if len(matches) == 0 {
		return "", false, nil
	}

	taken := make(map[*html.Node]struct{}, len(matches))
	var buf bytes.Buffer
	for _, node := range matches {
		if hasAncestorIn(node, taken) {
			continue
		}
		taken[node] = struct{}{}
		if err := html.Render(&buf, node); err != nil {
			return "", false, fmt.Errorf("cleaner: render match: %w", err)
		}
	}
	return buf.String(), true, nil
}

func hasAncestorIn(n *html.Node, set map[*html.Node]struct{}) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}
