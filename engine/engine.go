package engine

import (
	"context"

	"github.com/use-agent/authcrawl/models"
)

// Backend is the interface that all render engines must implement.
// A Backend is driven exclusively through a Handle, which owns its lifecycle.
type Backend interface {
	// Name returns the backend identifier (e.g. "rod", "http").
	Name() string

	// Launch allocates the underlying engine (browser process, transport).
	Launch(ctx context.Context) error

	// Render loads url in a fresh page context and extracts its content.
	Render(ctx context.Context, url string, cfg models.EngineConfig) (*models.RenderResult, error)

	// Close releases everything Launch allocated. It must tolerate being
	// called after a failed Launch.
	Close() error
}

// PageContext is the part of an in-flight page a hook may prepare before
// the page navigates.
type PageContext interface {
	// SetExtraHeaders sets headers sent with every request issued from the
	// page context from now on.
	SetExtraHeaders(headers map[string]string) error
}

// PageHook is invoked by a backend right after it creates a page context
// and before any navigation. Hooks run once per page context and must be
// reusable across all of them.
type PageHook func(ctx context.Context, pc PageContext) error

// Hooks holds the lifecycle hook slots a backend fires. Nil slots are skipped.
type Hooks struct {
	OnPageContextCreated PageHook
}

// PageContextCreated fires the OnPageContextCreated slot, if set.
func (h Hooks) PageContextCreated(ctx context.Context, pc PageContext) error {
	if h.OnPageContextCreated == nil {
		return nil
	}
	return h.OnPageContextCreated(ctx, pc)
}
