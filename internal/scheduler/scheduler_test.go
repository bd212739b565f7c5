package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfter_FiresOnceDelayElapses(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	fired := make(chan struct{}, 1)
	s.After(3*time.Second, func() { fired <- struct{}{} })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(2 * time.Second)
	select {
	case <-fired:
		t.Fatal("fired before the delay elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(time.Second)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}

func TestStop_PreventsCallback(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	fired := make(chan struct{}, 1)
	h := s.After(time.Second, func() { fired <- struct{}{} })

	assert.True(t, h.Stop())
	assert.False(t, h.Stop(), "second stop reports nothing pending")

	clock.Advance(2 * time.Second)
	select {
	case <-fired:
		t.Fatal("stopped callback fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStop_NilHandle(t *testing.T) {
	var h *Handle
	assert.False(t, h.Stop())
}

func TestNew_DefaultsToRealClock(t *testing.T) {
	s := New(nil)
	require.NotNil(t, s.Clock())

	fired := make(chan struct{})
	s.After(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("real clock callback never fired")
	}
}
