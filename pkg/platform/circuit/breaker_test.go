package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outcome is one recorded call result and the transition it should cause.
type outcome struct {
	fail   bool
	open   bool
	opened bool
	closed bool
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []outcome
	}{
		{
			name: "opens on the threshold failure",
			opts: []Option{WithFailureThreshold(3)},
			steps: []outcome{
				{fail: true},
				{fail: true},
				{fail: true, open: true, opened: true},
				{fail: true, open: true},
			},
		},
		{
			name: "a success clears the failure streak",
			opts: []Option{WithFailureThreshold(2)},
			steps: []outcome{
				{fail: true},
				{},
				{fail: true},
				{fail: true, open: true, opened: true},
			},
		},
		{
			name: "closes after consecutive successes",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []outcome{
				{fail: true, open: true, opened: true},
				{open: true},
				{closed: true},
				{},
			},
		},
		{
			name: "a failure while open restarts the success streak",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []outcome{
				{fail: true, open: true, opened: true},
				{open: true},
				{fail: true, open: true},
				{open: true},
				{closed: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("audit-kafka", tt.opts...)
			for i, step := range tt.steps {
				var change StateChange
				if step.fail {
					_, change = b.RecordFailure()
				} else {
					_, change = b.RecordSuccess()
				}
				assert.Equal(t, step.open, b.IsOpen(), "step %d open", i)
				assert.Equal(t, step.opened, change.Opened, "step %d opened", i)
				assert.Equal(t, step.closed, change.Closed, "step %d closed", i)
			}
		})
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := New("audit-kafka")
	assert.Equal(t, "audit-kafka", b.Name())
	assert.Equal(t, StateClosed, b.State())

	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary, "one success closes by default")
	assert.True(t, change.Closed)
}

func TestBreakerIgnoresNonPositiveOptions(t *testing.T) {
	b := New("x", WithFailureThreshold(0), WithSuccessThreshold(-1), WithCooldown(0), WithClock(nil))
	assert.Equal(t, 5, b.failureThreshold)
	assert.Equal(t, 1, b.successThreshold)
	assert.Equal(t, 30*time.Second, b.cooldown)
	require.NotNil(t, b.now)
}

func TestBreakerReset(t *testing.T) {
	b := New("x", WithFailureThreshold(1), WithSuccessThreshold(3))
	b.RecordFailure()
	b.RecordSuccess()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerAllowProbesOncePerCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("x",
		WithFailureThreshold(1),
		WithCooldown(time.Second),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow(), "inside cooldown")

	now = now.Add(time.Second)
	assert.True(t, b.Allow(), "probe")
	assert.False(t, b.Allow(), "only one probe per window")

	b.RecordFailure()
	now = now.Add(500 * time.Millisecond)
	assert.False(t, b.Allow())
	now = now.Add(500 * time.Millisecond)
	assert.True(t, b.Allow())

	b.RecordSuccess()
	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
}

func TestBreakerConcurrentUse(t *testing.T) {
	b := New("x", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				b.RecordFailure()
			} else {
				b.RecordSuccess()
			}
			_ = b.Allow()
		}()
	}
	wg.Wait()
	_ = b.State()
}
