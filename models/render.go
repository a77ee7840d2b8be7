package models

// CacheMode selects whether a render may be served from, and stored in,
// the engine's result cache.
type CacheMode string

const (
	CacheModeBypass CacheMode = "bypass"
	CacheModeUse    CacheMode = "use"
)

// EngineConfig carries the per-render extraction options. A fresh value is
// built for every render call.
type EngineConfig struct {
	CacheMode CacheMode

	// ExcludeExternalLinks unwraps links pointing off the page's host.
	ExcludeExternalLinks bool

	// ExcludeSocialMediaLinks unwraps links to well-known social networks.
	ExcludeSocialMediaLinks bool

	// Verbose enables debug logging for this render.
	Verbose bool
}

// RenderResult is the content extracted from a single rendered URL.
type RenderResult struct {
	URL        string
	FinalURL   string
	Title      string
	StatusCode int

	// Markdown is the page content converted to Markdown.
	Markdown string

	Links LinksResult
}

// LinksResult separates extracted links into internal and external groups.
type LinksResult struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

// Link represents a hyperlink extracted from the page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}
