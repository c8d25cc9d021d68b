package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	stderrors "immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(t *testing.T, cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("predictor", cfg, logger.NewTestLogger(t))
	b.now = clock.Now
	return b, clock
}

var errUpstream = errors.New("upstream failed")

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	require.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateClosed, b.State())

	require.ErrorIs(t, b.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.False(t, called)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeCircuitOpen))
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, succeed)
	_ = b.Execute(ctx, fail)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 30 * time.Second})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	require.Equal(t, StateOpen, b.State())

	clock.Advance(31 * time.Second)
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 30 * time.Second})
	ctx := context.Background()

	_ = b.Execute(ctx, fail)
	clock.Advance(31 * time.Second)
	_ = b.Execute(ctx, fail)

	assert.Equal(t, StateOpen, b.State())
	assert.Error(t, b.Allow())
}

func TestBreaker_HalfOpenAdmitsOneTrialAtATime(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 30 * time.Second})

	b.Mark(errUpstream)
	clock.Advance(31 * time.Second)

	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	err := b.Allow()
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodeCircuitOpen))

	b.Mark(nil)
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Allow())
	assert.Error(t, b.Allow())

	b.Mark(nil)
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
	assert.NoError(t, b.Allow())
}

func TestBreaker_HalfOpenConcurrentCallers(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Second})
	b.Mark(errUpstream)
	clock.Advance(2 * time.Second)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
}

func TestBreaker_ReleaseFreesTrialSlot(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Second})
	b.Mark(errUpstream)
	clock.Advance(2 * time.Second)

	require.NoError(t, b.Allow())
	b.Release()
	require.NoError(t, b.Allow())
	b.Mark(context.Canceled)
	require.NoError(t, b.Allow())

	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Minute})

	b.Mark(context.Canceled)
	b.Mark(stderrors.NewRequestCancelledError(context.Canceled))

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_NotifiesStateChanges(t *testing.T) {
	type transition struct{ from, to State }
	changes := make(chan transition, 4)

	b, clock := newTestBreaker(t, BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      time.Second,
		OnStateChange: func(name string, from, to State) {
			assert.Equal(t, "predictor", name)
			changes <- transition{from, to}
		},
	})

	_ = b.Execute(context.Background(), fail)
	clock.Advance(2 * time.Second)
	_ = b.Execute(context.Background(), succeed)

	got := map[transition]bool{}
	for i := 0; i < 3; i++ {
		select {
		case tr := <-changes:
			got[tr] = true
		case <-time.After(time.Second):
			t.Fatal("expected state change notification")
		}
	}
	assert.True(t, got[transition{StateClosed, StateOpen}])
	assert.True(t, got[transition{StateOpen, StateHalfOpen}])
	assert.True(t, got[transition{StateHalfOpen, StateClosed}])
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
