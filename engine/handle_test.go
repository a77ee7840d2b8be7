package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/authcrawl/cache"
	"github.com/use-agent/authcrawl/models"
)

// fakeBackend is a Backend whose behavior is driven by its fields.
type fakeBackend struct {
	launchErr error
	closeErr  error
	renderFn  func(ctx context.Context, url string) (*models.RenderResult, error)

	launches atomic.Int32
	closes   atomic.Int32
	renders  atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Launch(context.Context) error {
	f.launches.Add(1)
	return f.launchErr
}

func (f *fakeBackend) Render(ctx context.Context, url string, _ models.EngineConfig) (*models.RenderResult, error) {
	f.renders.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.renderFn != nil {
		return f.renderFn(ctx, url)
	}
	return &models.RenderResult{URL: url, FinalURL: url, Markdown: "# " + url}, nil
}

func (f *fakeBackend) Close() error {
	f.closes.Add(1)
	return f.closeErr
}

var testCfg = models.EngineConfig{CacheMode: models.CacheModeBypass}

func TestHandle_Lifecycle(t *testing.T) {
	b := &fakeBackend{}
	h := NewHandle(b)
	ctx := context.Background()

	assert.Equal(t, StateUninitialized, h.State())
	assert.Zero(t, b.launches.Load(), "nothing is allocated before Start")

	require.NoError(t, h.Start(ctx))
	assert.Equal(t, StateRunning, h.State())

	res, err := h.Render(ctx, "https://a.test/", testCfg)
	require.NoError(t, err)
	assert.Equal(t, "# https://a.test/", res.Markdown)

	require.NoError(t, h.Stop(ctx))
	assert.Equal(t, StateStopped, h.State())
	assert.EqualValues(t, 1, b.closes.Load())
}

func TestHandle_StartTwice(t *testing.T) {
	h := NewHandle(&fakeBackend{})
	require.NoError(t, h.Start(context.Background()))

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeEngineLifecycle, models.CodeOf(err))
	assert.Equal(t, StateRunning, h.State())
}

func TestHandle_StartFailure(t *testing.T) {
	cause := errors.New("chromium not found")
	b := &fakeBackend{launchErr: cause}
	h := NewHandle(b)

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeEngineStart, models.CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StateStopped, h.State())
	assert.EqualValues(t, 1, b.closes.Load(), "partial allocations are released")

	_, err = h.Render(context.Background(), "https://a.test/", testCfg)
	assert.Equal(t, models.ErrCodeEngineLifecycle, models.CodeOf(err))

	// Stop after a failed start has nothing to release.
	require.NoError(t, h.Stop(context.Background()))
	assert.EqualValues(t, 1, b.closes.Load())
}

func TestHandle_StopWithoutStart(t *testing.T) {
	b := &fakeBackend{}
	h := NewHandle(b)

	require.NoError(t, h.Stop(context.Background()))
	require.NoError(t, h.Stop(context.Background()))
	assert.Zero(t, b.closes.Load())
	assert.Equal(t, StateStopped, h.State())
}

func TestHandle_StopTwice(t *testing.T) {
	b := &fakeBackend{}
	h := NewHandle(b)
	require.NoError(t, h.Start(context.Background()))
	require.NoError(t, h.Stop(context.Background()))

	err := h.Stop(context.Background())
	assert.Equal(t, models.ErrCodeEngineLifecycle, models.CodeOf(err))
	assert.EqualValues(t, 1, b.closes.Load())
}

func TestHandle_StopFailure(t *testing.T) {
	h := NewHandle(&fakeBackend{closeErr: errors.New("kill failed")})
	require.NoError(t, h.Start(context.Background()))

	err := h.Stop(context.Background())
	assert.Equal(t, models.ErrCodeEngineStop, models.CodeOf(err))
	assert.False(t, models.IsFatal(err))
	assert.Equal(t, StateStopped, h.State())
}

func TestHandle_RenderOutsideRunning(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *Handle)
	}{
		{"before start", func(*Handle) {}},
		{"after stop", func(h *Handle) {
			_ = h.Start(context.Background())
			_ = h.Stop(context.Background())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			h := NewHandle(b)
			tt.setup(h)

			_, err := h.Render(context.Background(), "https://a.test/", testCfg)
			require.Error(t, err)
			assert.True(t, models.IsFatal(err))
			assert.Zero(t, b.renders.Load())
		})
	}
}

func TestHandle_RenderErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, models.ErrCodeTimeout},
		{"raw navigation error", errors.New("net::ERR_NAME_NOT_RESOLVED"), models.ErrCodeNavigation},
		{"coded error kept", models.NewScrapeError(models.ErrCodeReadability, "empty", nil), models.ErrCodeReadability},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandle(&fakeBackend{renderFn: func(context.Context, string) (*models.RenderResult, error) {
				return nil, tt.err
			}})
			require.NoError(t, h.Start(context.Background()))
			defer h.Stop(context.Background())

			_, err := h.Render(context.Background(), "https://a.test/", testCfg)
			assert.Equal(t, tt.want, models.CodeOf(err))

			var se *models.ScrapeError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "https://a.test/", se.URL)

			// The handle stays usable after a per-URL failure.
			assert.Equal(t, StateRunning, h.State())
		})
	}
}

func TestHandle_RendersAreSerialized(t *testing.T) {
	b := &fakeBackend{renderFn: func(_ context.Context, url string) (*models.RenderResult, error) {
		time.Sleep(5 * time.Millisecond)
		return &models.RenderResult{URL: url}, nil
	}}
	h := NewHandle(b)
	require.NoError(t, h.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Render(context.Background(), "https://a.test/", testCfg)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 8, b.renders.Load())
	assert.EqualValues(t, 1, b.maxInFlight.Load())
	require.NoError(t, h.Stop(context.Background()))
}

func TestHandle_StopWaitsForInFlightRender(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{renderFn: func(_ context.Context, url string) (*models.RenderResult, error) {
		close(entered)
		<-release
		return &models.RenderResult{URL: url}, nil
	}}
	h := NewHandle(b)
	require.NoError(t, h.Start(context.Background()))

	renderDone := make(chan error, 1)
	go func() {
		_, err := h.Render(context.Background(), "https://a.test/", testCfg)
		renderDone <- err
	}()
	<-entered

	stopDone := make(chan error, 1)
	go func() { stopDone <- h.Stop(context.Background()) }()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a render was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Zero(t, b.closes.Load())

	close(release)
	require.NoError(t, <-renderDone)
	require.NoError(t, <-stopDone)
	assert.EqualValues(t, 1, b.closes.Load())
}

func TestHandle_Cache(t *testing.T) {
	b := &fakeBackend{}
	c := cache.New(10, time.Minute)
	h := NewHandle(b, WithCache(c))
	require.NoError(t, h.Start(context.Background()))
	defer h.Stop(context.Background())

	use := models.EngineConfig{CacheMode: models.CacheModeUse}
	for i := 0; i < 3; i++ {
		_, err := h.Render(context.Background(), "https://a.test/", use)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, b.renders.Load(), "cache-use renders hit the cache")

	for i := 0; i < 2; i++ {
		_, err := h.Render(context.Background(), "https://a.test/", testCfg)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, b.renders.Load(), "bypass always renders")
}

func TestHooks_NilSlotIsSkipped(t *testing.T) {
	var h Hooks
	assert.NoError(t, h.PageContextCreated(context.Background(), nil))
}
