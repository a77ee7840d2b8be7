package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/authcrawl/models"
)

// Gate blocks request processing until the engine is usable.
// *Coordinator implements it.
type Gate interface {
	Ready(ctx context.Context) error
}

// Adapter turns each dispatched URL into a render call and the render
// result into an output record.
type Adapter struct {
	engine        Engine
	gate          Gate
	verbose       bool
	cacheMode     models.CacheMode
	renderTimeout time.Duration
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithVerbose sets the Verbose flag of every render's EngineConfig.
func WithVerbose(v bool) AdapterOption {
	return func(a *Adapter) {
		a.verbose = v
	}
}

// WithCacheMode overrides the default CacheModeBypass.
func WithCacheMode(m models.CacheMode) AdapterOption {
	return func(a *Adapter) {
		if m != "" {
			a.cacheMode = m
		}
	}
}

// WithRenderTimeout bounds each render. Zero leaves it to the engine.
func WithRenderTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.renderTimeout = d
	}
}

// NewAdapter creates an adapter rendering on e once gate opens.
func NewAdapter(e Engine, gate Gate, opts ...AdapterOption) *Adapter {
	a := &Adapter{engine: e, gate: gate, cacheMode: models.CacheModeBypass}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EngineConfig builds a fresh per-render config: cache bypassed unless
// configured otherwise, external and social-media links excluded.
func (a *Adapter) EngineConfig() models.EngineConfig {
	return models.EngineConfig{
		CacheMode:               a.cacheMode,
		ExcludeExternalLinks:    true,
		ExcludeSocialMediaLinks: true,
		Verbose:                 a.verbose,
	}
}

// Handle renders url and returns its output record.
//
// A failed page yields an error-marked record and a nil error, so the run
// continues. A non-nil error means the run must abort: the engine never
// started, was already stopped, or ctx ended while waiting for it.
func (a *Adapter) Handle(ctx context.Context, url string) (*models.OutputRecord, error) {
	if err := a.gate.Ready(ctx); err != nil {
		return nil, err
	}

	// Cancelling the run does not interrupt a render in flight; it ends
	// on its own or at its timeout.
	rctx := context.WithoutCancel(ctx)
	if a.renderTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, a.renderTimeout)
		defer cancel()
	}

	res, err := a.engine.Render(rctx, url, a.EngineConfig())
	if err != nil {
		if models.IsFatal(err) {
			return nil, err
		}
		slog.Warn("render failed, emitting error record",
			"url", url,
			"code", models.CodeOf(err),
			"error", err,
		)
		return models.NewFailedRecord(url, err), nil
	}

	return &models.OutputRecord{URL: url, Markdown: res.Markdown}, nil
}
