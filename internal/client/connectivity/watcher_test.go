package connectivity

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_StartsOffline(t *testing.T) {
	w := NewWatcher(func(context.Context) bool { return true }, time.Hour)
	assert.False(t, w.Online())
}

func TestWatcher_SetState_EdgeTriggered(t *testing.T) {
	w := NewWatcher(func(context.Context) bool { return false }, time.Hour)

	sub := w.Subscribe()
	defer sub.Close()

	w.SetState(true)
	w.SetState(true) // no transition, no event
	w.SetState(false)

	select {
	case ev := <-sub.C:
		assert.Equal(t, Online, ev)
	case <-time.After(time.Second):
		t.Fatal("expected an online event")
	}

	select {
	case ev := <-sub.C:
		assert.Equal(t, Offline, ev, "the repeated online state must not produce a second event")
	case <-time.After(time.Second):
		t.Fatal("expected an offline event")
	}

	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected extra event: %v", ev)
	default:
	}
}

func TestWatcher_Subscribe_MultipleListeners(t *testing.T) {
	w := NewWatcher(func(context.Context) bool { return false }, time.Hour)

	sub1 := w.Subscribe()
	defer sub1.Close()
	sub2 := w.Subscribe()
	defer sub2.Close()

	w.SetState(true)

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case ev := <-sub.C:
			assert.Equal(t, Online, ev)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestWatcher_Close_StopsDelivery(t *testing.T) {
	w := NewWatcher(func(context.Context) bool { return false }, time.Hour)

	sub := w.Subscribe()
	sub.Close()

	w.SetState(true)

	_, ok := <-sub.C
	assert.False(t, ok, "a closed subscription's channel is closed")
}

func TestWatcher_Run_ProbesAndTransitions(t *testing.T) {
	var online atomic.Bool

	w := NewWatcher(func(context.Context) bool { return online.Load() }, 10*time.Millisecond)

	sub := w.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	require.Never(t, func() bool { return w.Online() }, 50*time.Millisecond, 10*time.Millisecond)

	online.Store(true)

	select {
	case ev := <-sub.C:
		assert.Equal(t, Online, ev)
	case <-time.After(time.Second):
		t.Fatal("watcher did not observe the probe transition")
	}

	assert.True(t, w.Online())
}
