package crawl

import (
	"context"
	"log/slog"
	"sync"

	"github.com/use-agent/authcrawl/models"
)

// Engine is the render engine as the crawl layer drives it.
// *engine.Handle implements it.
type Engine interface {
	Start(ctx context.Context) error
	Render(ctx context.Context, url string, cfg models.EngineConfig) (*models.RenderResult, error)
	Stop(ctx context.Context) error
}

// RunSignals are the lifecycle events a dispatcher delivers, in order,
// once per run.
type RunSignals interface {
	OnRunStarted(ctx context.Context) error
	OnRunFinished(ctx context.Context) error
}

// Coordinator ties an Engine's Start and Stop to a run's lifecycle and
// gates request processing on a completed Start.
type Coordinator struct {
	engine Engine

	startOnce sync.Once
	stopOnce  sync.Once
	ready     chan struct{} // closed once the start outcome is known

	mu       sync.Mutex
	startErr error
	finished bool
}

var _ RunSignals = (*Coordinator)(nil)

// NewCoordinator creates a coordinator for one run of e.
func NewCoordinator(e Engine) *Coordinator {
	return &Coordinator{
		engine: e,
		ready:  make(chan struct{}),
	}
}

// OnRunStarted starts the engine and returns once it is running. A start
// failure is fatal for the run: it is returned here and by every later
// Ready call.
func (c *Coordinator) OnRunStarted(ctx context.Context) error {
	ran := false
	c.startOnce.Do(func() {
		ran = true
		err := c.engine.Start(ctx)
		if err != nil {
			slog.Error("render engine failed to start, aborting run", "error", err)
		}
		c.open(err)
	})
	if !ran {
		return models.NewScrapeError(models.ErrCodeEngineLifecycle, "run already started or finished", nil)
	}
	return c.outcome()
}

// OnRunFinished stops the engine. The engine is stopped exactly once per
// run, even if the run never started; later calls are no-ops. A stop
// failure is logged and returned for reporting but is never fatal.
func (c *Coordinator) OnRunFinished(ctx context.Context) error {
	c.mu.Lock()
	c.finished = true
	c.mu.Unlock()

	// Release anyone waiting in Ready if the run never started. If Start
	// is still in flight this waits for it, so Stop always follows Start.
	c.startOnce.Do(func() {
		c.open(models.NewScrapeError(models.ErrCodeEngineLifecycle, "run finished before it started", nil))
	})

	var stopErr error
	c.stopOnce.Do(func() {
		stopErr = c.engine.Stop(ctx)
		if stopErr != nil {
			slog.Warn("render engine stop failed", "error", stopErr)
		}
	})
	return stopErr
}

// Ready blocks until the engine has started. It returns the start error
// if Start failed, a lifecycle error once the run has finished, or ctx's
// error if ctx is done, even when the engine is already running.
func (c *Coordinator) Ready(ctx context.Context) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	// Both cases may be ready at once; a done context always wins.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.outcome(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return models.NewScrapeError(models.ErrCodeEngineLifecycle, "request dispatched after run finished", nil)
	}
	return nil
}

func (c *Coordinator) open(err error) {
	c.mu.Lock()
	c.startErr = err
	c.mu.Unlock()
	close(c.ready)
}

func (c *Coordinator) outcome() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startErr
}
