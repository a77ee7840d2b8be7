package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/authcrawl/models"
)

func TestCoordinator_StartThenFinish(t *testing.T) {
	e := &fakeEngine{}
	c := NewCoordinator(e)
	ctx := context.Background()

	require.NoError(t, c.OnRunStarted(ctx))
	require.NoError(t, c.Ready(ctx))
	require.NoError(t, c.OnRunFinished(ctx))

	events, starts, stops := e.snapshot()
	assert.Equal(t, []string{"start", "stop"}, events)
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestCoordinator_StartFailure(t *testing.T) {
	cause := models.NewScrapeError(models.ErrCodeEngineStart, "no browser", nil)
	e := &fakeEngine{startErr: cause}
	c := NewCoordinator(e)
	ctx := context.Background()

	err := c.OnRunStarted(ctx)
	require.ErrorIs(t, err, cause)
	assert.ErrorIs(t, c.Ready(ctx), cause)

	require.NoError(t, c.OnRunFinished(ctx))
	_, _, stops := e.snapshot()
	assert.Equal(t, 1, stops, "stop is still delivered to release partial allocations")
}

func TestCoordinator_StartTwice(t *testing.T) {
	e := &fakeEngine{}
	c := NewCoordinator(e)
	require.NoError(t, c.OnRunStarted(context.Background()))

	err := c.OnRunStarted(context.Background())
	assert.Equal(t, models.ErrCodeEngineLifecycle, models.CodeOf(err))
	_, starts, _ := e.snapshot()
	assert.Equal(t, 1, starts)
}

func TestCoordinator_FinishIsIdempotent(t *testing.T) {
	e := &fakeEngine{stopErr: models.NewScrapeError(models.ErrCodeEngineStop, "kill failed", nil)}
	c := NewCoordinator(e)
	ctx := context.Background()
	require.NoError(t, c.OnRunStarted(ctx))

	err := c.OnRunFinished(ctx)
	assert.Equal(t, models.ErrCodeEngineStop, models.CodeOf(err))
	assert.NoError(t, c.OnRunFinished(ctx))

	_, _, stops := e.snapshot()
	assert.Equal(t, 1, stops)
}

func TestCoordinator_FinishWithoutStart(t *testing.T) {
	e := &fakeEngine{}
	c := NewCoordinator(e)
	ctx := context.Background()

	require.NoError(t, c.OnRunFinished(ctx))

	err := c.Ready(ctx)
	assert.Equal(t, models.ErrCodeEngineLifecycle, models.CodeOf(err))

	err = c.OnRunStarted(ctx)
	assert.Equal(t, models.ErrCodeEngineLifecycle, models.CodeOf(err))

	_, starts, _ := e.snapshot()
	assert.Zero(t, starts)
}

func TestCoordinator_ReadyBlocksUntilStarted(t *testing.T) {
	e := &fakeEngine{startDelay: 30 * time.Millisecond}
	c := NewCoordinator(e)

	seen := make(chan []string, 1)
	go func() {
		assert.NoError(t, c.Ready(context.Background()))
		events, _, _ := e.snapshot()
		seen <- events
	}()

	require.NoError(t, c.OnRunStarted(context.Background()))
	assert.Equal(t, []string{"start"}, <-seen)
}

func TestCoordinator_ReadyHonorsContext(t *testing.T) {
	c := NewCoordinator(&fakeEngine{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.Ready(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCoordinator_ReadyAfterFinish(t *testing.T) {
	c := NewCoordinator(&fakeEngine{})
	ctx := context.Background()
	require.NoError(t, c.OnRunStarted(ctx))
	require.NoError(t, c.OnRunFinished(ctx))

	err := c.Ready(ctx)
	assert.True(t, models.IsFatal(err))
}

func TestCoordinator_ReadyPrefersDoneContext(t *testing.T) {
	c := NewCoordinator(&fakeEngine{})
	require.NoError(t, c.OnRunStarted(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 100; i++ {
		require.ErrorIs(t, c.Ready(ctx), context.Canceled, "iteration %d", i)
	}
	assert.NoError(t, c.Ready(context.Background()))
}
