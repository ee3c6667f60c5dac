// Package sim runs the periodic fleet movement and arrival pass.
package sim

import (
	"context"
	"math/rand"
	"time"

	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/logger"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/core/store"
)

// Mover applies a position mutation to one unit. Implemented by the fleet
// registry so status transitions never race with movement.
type Mover interface {
	Move(ctx context.Context, unitID string, fn func(geo.Point) geo.Point) (model.Unit, error)
}

// ArrivalChecker evaluates whether an en-route unit has reached its scene.
// Implemented by the dispatch engine.
type ArrivalChecker interface {
	CheckArrival(ctx context.Context, unit model.Unit) error
}

// Broadcaster pushes the fleet snapshot to observers after each tick.
type Broadcaster interface {
	Broadcast(ctx context.Context)
}

// Clock is the perpetual simulation process. On every tick it perturbs each
// unit's position, evaluates arrival for in-transit units and emits one full
// fleet snapshot.
type Clock struct {
	store    store.FleetStore
	mover    Mover
	checker  ArrivalChecker
	hub      Broadcaster
	log      logger.Logger
	interval time.Duration
	jitter   float64
	rng      *rand.Rand
}

// NewClock creates a Clock from the given configuration.
func NewClock(cfg Config, s store.FleetStore, mover Mover, checker ArrivalChecker, hub Broadcaster, log logger.Logger) *Clock {
	cfg.SetDefaults()
	return &Clock{
		store:    s,
		mover:    mover,
		checker:  checker,
		hub:      hub,
		log:      log,
		interval: time.Duration(cfg.TickIntervalMS) * time.Millisecond,
		jitter:   cfg.JitterDegrees,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the tick loop until the context is canceled. Ticks run
// synchronously on this goroutine; if a pass outlasts the interval the
// ticker coalesces the overdue ticks instead of queueing them.
func (c *Clock) Run(ctx context.Context) {
	c.log.Infof("simulation clock starting, interval %s", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Tick(ctx)
		case <-ctx.Done():
			c.log.Infof("simulation clock stopping")
			return
		}
	}
}

// Tick performs one movement and arrival pass over the whole fleet and then
// broadcasts the complete snapshot. Per-unit failures are logged and
// isolated; one bad unit never stops the pass.
func (c *Clock) Tick(ctx context.Context) {
	start := time.Now()
	units, err := c.store.ListUnits(ctx)
	if err != nil {
		c.log.Errorf("tick: list units: %v", err)
		return
	}
	for _, unit := range units {
		moved, err := c.mover.Move(ctx, unit.ID, func(p geo.Point) geo.Point {
			return geo.Jitter(p, c.jitter, c.rng)
		})
		if err != nil {
			c.log.Warnf("tick: move unit %s: %v", unit.ID, err)
			continue
		}
		unitsMoved.Inc()
		if moved.Status != model.UnitAssigned {
			continue
		}
		if err := c.checker.CheckArrival(ctx, moved); err != nil {
			c.log.Warnf("tick: arrival check for %s: %v", moved.ID, err)
		}
	}
	c.hub.Broadcast(ctx)
	ticksTotal.Inc()
	tickDuration.Observe(time.Since(start).Seconds())
}
