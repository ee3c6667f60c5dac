// Package broadcast pushes the fleet roster to connected observers. The full
// snapshot is rebuilt and fanned out on every material change; delivery is
// non-blocking and best-effort since the next tick resends the whole state.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/urbanpulse/fleetops/core/logger"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/core/store"
)

// Sink receives snapshots for delivery outside the process, e.g. an MQTT
// feed or a telemetry database.
type Sink interface {
	PublishSnapshot(ctx context.Context, snap model.FleetSnapshot) error
}

// Hub maintains the set of connected observers and fans snapshots out to
// them. Subscribers with full channels miss that snapshot.
type Hub struct {
	store store.FleetStore
	log   logger.Logger
	sinks []Sink

	mu     sync.RWMutex
	subs   []chan model.FleetSnapshot
	closed bool
}

// NewHub creates a Hub over the given store. Sinks are optional.
func NewHub(s store.FleetStore, log logger.Logger, sinks ...Sink) *Hub {
	return &Hub{store: s, log: log, sinks: sinks}
}

// Subscribe registers an observer and returns its channel. New observers
// should call Snapshot for the current roster immediately after connecting.
func (h *Hub) Subscribe() <-chan model.FleetSnapshot {
	ch := make(chan model.FleetSnapshot, 8)
	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subs = append(h.subs, ch)
	}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes the observer and closes its channel.
func (h *Hub) Unsubscribe(sub <-chan model.FleetSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ch := range h.subs {
		if ch == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			if !h.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
	h.mu.Unlock()
}

// Snapshot builds the current full fleet roster from the store.
func (h *Hub) Snapshot(ctx context.Context) (model.FleetSnapshot, error) {
	units, err := h.store.ListUnits(ctx)
	if err != nil {
		return model.FleetSnapshot{}, err
	}
	snap := model.FleetSnapshot{
		Units:     make([]model.UnitSnapshot, 0, len(units)),
		Timestamp: time.Now().UTC(),
	}
	for _, u := range units {
		snap.Units = append(snap.Units, model.SnapshotUnit(u))
	}
	return snap, nil
}

// Broadcast rebuilds the roster and delivers it to every observer and sink.
// Failures are logged, never propagated; a missed delivery is corrected by
// the next broadcast.
func (h *Hub) Broadcast(ctx context.Context) {
	snap, err := h.Snapshot(ctx)
	if err != nil {
		h.log.Errorf("broadcast: snapshot failed: %v", err)
		return
	}

	h.mu.RLock()
	if !h.closed {
		for _, ch := range h.subs {
			select {
			case ch <- snap:
			default:
			}
		}
	}
	h.mu.RUnlock()

	for _, s := range h.sinks {
		if err := s.PublishSnapshot(ctx, snap); err != nil {
			h.log.Warnf("broadcast: sink publish failed: %v", err)
		}
	}
}
