// Package connectivity observes network reachability and reports
// edge-triggered online/offline transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/wb-go/wbf/zlog"
)

// Event is a connectivity state transition.
type Event int

const (
	Online Event = iota
	Offline
)

// ProbeFunc reports whether the remote endpoint is currently reachable.
type ProbeFunc func(ctx context.Context) bool

// Subscription is an explicit handle for one event listener. Close must be
// called when the listener is done; events arriving after Close are dropped.
type Subscription struct {
	C <-chan Event

	id int
	w  *Watcher
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.w.unsubscribe(s.id)
}

// Watcher polls a probe and broadcasts state transitions to subscribers.
// Only transitions are delivered, so a subscriber acting on every Online
// event runs exactly once per connectivity-restore window.
type Watcher struct {
	probe    ProbeFunc
	interval time.Duration

	mu     sync.Mutex
	online bool
	subs   map[int]chan Event
	nextID int
}

// NewWatcher creates a watcher in the offline state. The first probe
// establishes the real state.
func NewWatcher(probe ProbeFunc, interval time.Duration) *Watcher {
	return &Watcher{
		probe:    probe,
		interval: interval,
		subs:     make(map[int]chan Event),
	}
}

// Online reports the current connectivity state.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Subscribe registers a new listener for connectivity transitions.
func (w *Watcher) Subscribe() *Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++

	ch := make(chan Event, 4)
	w.subs[id] = ch

	return &Subscription{C: ch, id: id, w: w}
}

func (w *Watcher) unsubscribe(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ch, ok := w.subs[id]; ok {
		delete(w.subs, id)
		close(ch)
	}
}

// SetState records the connectivity state and notifies subscribers on a
// transition. It is exported so composition roots can seed the initial
// state and tests can drive transitions directly.
func (w *Watcher) SetState(online bool) {
	w.mu.Lock()

	if w.online == online {
		w.mu.Unlock()
		return
	}

	w.online = online

	ev := Offline
	if online {
		ev = Online
	}

	for _, ch := range w.subs {
		select {
		case ch <- ev:
		default:
			zlog.Logger.Warn().Msg("connectivity subscriber is not keeping up, dropping event")
		}
	}

	w.mu.Unlock()

	if online {
		zlog.Logger.Info().Msg("connection restored")
	} else {
		zlog.Logger.Info().Msg("connection lost")
	}
}

// Run probes reachability on the configured interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.SetState(w.probe(ctx))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.SetState(w.probe(ctx))
		}
	}
}
