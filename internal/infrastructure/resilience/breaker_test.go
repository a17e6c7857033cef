package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errWrite = errors.New("insert failed")

func succeed(context.Context) error { return nil }
func fail(context.Context) error    { return errWrite }

func newTestBreaker(t *testing.T, settings Settings) (*Breaker, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Date(2026, 2, 6, 1, 17, 0, 0, time.UTC)}
	settings.Now = clock.Now
	return New("audit", settings), clock
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		calls         []bool // true = success, false = failure
		expectedState State
	}{
		{"stays closed on successes", []bool{true, true, true}, StateClosed},
		{"stays closed below threshold", []bool{false, false, true, false, false}, StateClosed},
		{"opens after consecutive failures", []bool{false, false, false}, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(t, Settings{Trip: ConsecutiveFailures(3)})

			for _, ok := range tt.calls {
				fn := fail
				if ok {
					fn = succeed
				}
				_ = b.Do(context.Background(), fn)
			}

			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	b, _ := newTestBreaker(t, Settings{})

	require.NoError(t, b.Do(context.Background(), succeed))
	counts := b.Counts()
	assert.Equal(t, uint32(1), counts.Calls)
	assert.Equal(t, uint32(1), counts.Successes)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)

	assert.ErrorIs(t, b.Do(context.Background(), fail), errWrite)
	counts = b.Counts()
	assert.Equal(t, uint32(2), counts.Calls)
	assert.Equal(t, uint32(1), counts.Failures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Zero(t, counts.ConsecutiveSuccesses)
}

func TestBreakerShedsWhileOpen(t *testing.T) {
	b, _ := newTestBreaker(t, Settings{Trip: ConsecutiveFailures(2)})

	for i := 0; i < 2; i++ {
		_ = b.Do(context.Background(), fail)
	}
	require.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(t, Settings{
		Trials:   2,
		Cooldown: 10 * time.Second,
		Trip:     ConsecutiveFailures(2),
	})

	for i := 0; i < 2; i++ {
		_ = b.Do(context.Background(), fail)
	}
	require.Equal(t, StateOpen, b.State())

	clock.Advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Do(context.Background(), succeed))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(t, Settings{Cooldown: time.Second, Trip: ConsecutiveFailures(1)})

	_ = b.Do(context.Background(), fail)
	clock.Advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	_ = b.Do(context.Background(), fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerTrialLimit(t *testing.T) {
	b, clock := newTestBreaker(t, Settings{Trials: 1, Cooldown: time.Second, Trip: ConsecutiveFailures(1)})

	_ = b.Do(context.Background(), fail)
	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		done <- b.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, b.Do(context.Background(), succeed), ErrTrialLimit)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	b, clock := newTestBreaker(t, Settings{Interval: time.Minute, Trip: ConsecutiveFailures(3)})

	_ = b.Do(context.Background(), fail)
	_ = b.Do(context.Background(), fail)
	clock.Advance(2 * time.Minute)
	_ = b.Do(context.Background(), fail)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b, _ := newTestBreaker(t, Settings{Trip: ConsecutiveFailures(1)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
	assert.Zero(t, b.Counts().Calls)
}

func TestBreakerCallbacks(t *testing.T) {
	var transitions []string

	b, clock := newTestBreaker(t, Settings{
		Cooldown: time.Second,
		Trip:     ConsecutiveFailures(2),
		OnStateChange: func(name string, from State, to State) {
			assert.Equal(t, "audit", name)
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	for i := 0; i < 2; i++ {
		_ = b.Do(context.Background(), fail)
	}
	clock.Advance(2 * time.Second)
	require.NoError(t, b.Do(context.Background(), succeed))

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerRepanics(t *testing.T) {
	b, _ := newTestBreaker(t, Settings{Trip: ConsecutiveFailures(1)})

	assert.Panics(t, func() {
		_ = b.Do(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}
