package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/use-agent/authcrawl/models"
)

// fakeEngine records every lifecycle call in order.
type fakeEngine struct {
	startErr   error
	startDelay time.Duration
	stopErr    error
	renderFn   func(ctx context.Context, url string) (*models.RenderResult, error)

	mu     sync.Mutex
	events []string
	starts int
	stops  int
	cfgs   []models.EngineConfig
}

func (f *fakeEngine) Start(context.Context) error {
	if f.startDelay > 0 {
		time.Sleep(f.startDelay)
	}
	f.record("start")
	f.mu.Lock()
	f.starts++
	f.mu.Unlock()
	return f.startErr
}

func (f *fakeEngine) Render(ctx context.Context, url string, cfg models.EngineConfig) (*models.RenderResult, error) {
	f.record("render " + url)
	f.mu.Lock()
	f.cfgs = append(f.cfgs, cfg)
	f.mu.Unlock()
	if f.renderFn != nil {
		return f.renderFn(ctx, url)
	}
	return &models.RenderResult{URL: url, Markdown: "# " + url}, nil
}

func (f *fakeEngine) Stop(context.Context) error {
	f.record("stop")
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return f.stopErr
}

func (f *fakeEngine) record(ev string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeEngine) snapshot() (events []string, starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...), f.starts, f.stops
}
