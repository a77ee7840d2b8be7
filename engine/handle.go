package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/authcrawl/cache"
	"github.com/use-agent/authcrawl/models"
)

// State is the lifecycle state of a Handle.
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handle owns one render backend for the whole crawl run.
//
// Lifecycle: Uninitialized --Start--> Running --Stop--> Stopped.
// Render is valid only while Running, and calls are serialized: one
// navigation completes before the next begins.
type Handle struct {
	backend Backend
	cache   *cache.Cache

	mu       sync.Mutex // guards state and launched
	state    State
	launched bool

	// renderMu serializes backend renders. Stop takes it before closing
	// the backend so every admitted render finishes first.
	renderMu sync.Mutex
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithCache enables the result cache for renders using CacheModeUse.
// The handle closes the cache on Stop.
func WithCache(c *cache.Cache) HandleOption {
	return func(h *Handle) {
		h.cache = c
	}
}

// NewHandle wraps backend in an Uninitialized handle. Nothing is allocated
// until Start.
func NewHandle(backend Backend, opts ...HandleOption) *Handle {
	h := &Handle{backend: backend}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Backend returns the backend's name.
func (h *Handle) Backend() string {
	return h.backend.Name()
}

// Start launches the backend. It may be called once; a second call is a
// lifecycle error. A launch failure is returned as ENGINE_START_FAILED and
// leaves the handle Stopped with whatever was allocated released.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateUninitialized {
		return lifecycleError(fmt.Sprintf("start called while %s", h.state))
	}

	began := time.Now()
	if err := h.backend.Launch(ctx); err != nil {
		h.state = StateStopped
		if closeErr := h.backend.Close(); closeErr != nil {
			slog.Warn("render engine: cleanup after failed start",
				"backend", h.backend.Name(), "error", closeErr)
		}
		h.closeCache()
		return models.NewScrapeError(
			models.ErrCodeEngineStart,
			"failed to start render engine",
			err,
		)
	}

	h.state = StateRunning
	h.launched = true
	slog.Info("render engine started",
		"backend", h.backend.Name(),
		"startup_ms", time.Since(began).Milliseconds(),
	)
	return nil
}

// Render renders url with cfg. Failures of the page itself are returned as
// per-URL render errors and leave the handle usable; calling Render outside
// the Running state is a lifecycle error.
func (h *Handle) Render(ctx context.Context, url string, cfg models.EngineConfig) (*models.RenderResult, error) {
	if err := h.checkRunning(url); err != nil {
		return nil, err
	}

	var key string
	if cfg.CacheMode == models.CacheModeUse && h.cache != nil {
		key = cache.Key(url, cfg)
		if res, ok := h.cache.Get(key); ok {
			if cfg.Verbose {
				slog.Debug("render cache hit", "url", url)
			}
			return res, nil
		}
	}

	h.renderMu.Lock()
	defer h.renderMu.Unlock()

	// Stop may have run while this call was queued.
	if err := h.checkRunning(url); err != nil {
		return nil, err
	}

	began := time.Now()
	if cfg.Verbose {
		slog.Debug("render started", "backend", h.backend.Name(), "url", url)
	}

	res, err := h.backend.Render(ctx, url, cfg)
	if err != nil {
		return nil, ClassifyRenderError(err, url, "render failed")
	}

	if cfg.Verbose {
		slog.Debug("render finished",
			"url", url,
			"final_url", res.FinalURL,
			"status", res.StatusCode,
			"markdown_bytes", len(res.Markdown),
			"render_ms", time.Since(began).Milliseconds(),
		)
	}

	if key != "" {
		h.cache.Set(key, res)
	}
	return res, nil
}

// Stop releases the backend. It is a no-op if the engine never started,
// waits for an in-flight render, and reports a second Stop after a
// successful run as a lifecycle error. A backend close failure is returned
// as ENGINE_STOP_FAILED; the handle is Stopped either way.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.launched {
		h.state = StateStopped
		h.mu.Unlock()
		h.closeCache()
		return nil
	}
	if h.state == StateStopped {
		h.mu.Unlock()
		return lifecycleError("stop called twice")
	}
	h.state = StateStopped
	h.mu.Unlock()

	h.renderMu.Lock()
	defer h.renderMu.Unlock()

	h.closeCache()

	if err := h.backend.Close(); err != nil {
		return models.NewScrapeError(
			models.ErrCodeEngineStop,
			"failed to stop render engine",
			err,
		)
	}
	slog.Info("render engine stopped", "backend", h.backend.Name())
	return nil
}

func (h *Handle) checkRunning(url string) error {
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()
	if state == StateRunning {
		return nil
	}
	err := lifecycleError(fmt.Sprintf("render called while %s", state))
	err.URL = url
	return err
}

func (h *Handle) closeCache() {
	if h.cache != nil {
		h.cache.Close()
	}
}
