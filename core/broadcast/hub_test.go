package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/infra/memstore"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

type captureSink struct {
	snaps []model.FleetSnapshot
	err   error
}

func (c *captureSink) PublishSnapshot(_ context.Context, snap model.FleetSnapshot) error {
	c.snaps = append(c.snaps, snap)
	return c.err
}

func storeWithUnits(t *testing.T, n int) *memstore.MemStore {
	t.Helper()
	st := memstore.New()
	for i := 0; i < n; i++ {
		err := st.SaveUnit(context.Background(), model.Unit{
			Name:     "unit",
			Type:     model.UnitAmbulance,
			Status:   model.UnitIdle,
			Position: geo.Point{Lat: 40.0 + float64(i), Lng: -3.0},
		})
		if err != nil {
			t.Fatalf("save unit: %v", err)
		}
	}
	return st
}

func TestBroadcastDeliversFullRoster(t *testing.T) {
	st := storeWithUnits(t, 3)
	sink := &captureSink{}
	hub := NewHub(st, nopLogger{}, sink)
	sub := hub.Subscribe()

	hub.Broadcast(context.Background())

	select {
	case snap := <-sub:
		if len(snap.Units) != 3 {
			t.Errorf("subscriber got %d units, want 3", len(snap.Units))
		}
		if snap.Timestamp.IsZero() {
			t.Error("snapshot timestamp not set")
		}
	default:
		t.Fatal("subscriber received nothing")
	}
	if len(sink.snaps) != 1 || len(sink.snaps[0].Units) != 3 {
		t.Errorf("sink snaps = %+v, want one full roster", sink.snaps)
	}
}

func TestBroadcastSkipsFullSubscriber(t *testing.T) {
	st := storeWithUnits(t, 1)
	hub := NewHub(st, nopLogger{})
	sub := hub.Subscribe()

	// Channel capacity is 8; the extra broadcasts must not block.
	for i := 0; i < 20; i++ {
		hub.Broadcast(context.Background())
	}
	var received int
	for {
		select {
		case <-sub:
			received++
			continue
		default:
		}
		break
	}
	if received != 8 {
		t.Errorf("received = %d, want the channel capacity of 8", received)
	}
}

func TestBroadcastToleratesSinkFailure(t *testing.T) {
	st := storeWithUnits(t, 1)
	failing := &captureSink{err: errors.New("broker down")}
	healthy := &captureSink{}
	hub := NewHub(st, nopLogger{}, failing, healthy)

	hub.Broadcast(context.Background())

	if len(healthy.snaps) != 1 {
		t.Errorf("healthy sink snaps = %d, want 1", len(healthy.snaps))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(storeWithUnits(t, 0), nopLogger{})
	sub := hub.Subscribe()
	hub.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	// Broadcasting after unsubscribe must not panic.
	hub.Broadcast(context.Background())
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	hub := NewHub(storeWithUnits(t, 0), nopLogger{})
	hub.Close()
	sub := hub.Subscribe()
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel after hub close")
	}
}
