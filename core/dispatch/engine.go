// Package dispatch implements nearest-unit matching, arrival detection and
// incident resolution over the shared fleet registry.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/urbanpulse/fleetops/core/broadcast"
	"github.com/urbanpulse/fleetops/core/fleet"
	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/logger"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/core/store"
)

// DefaultArrivalThreshold is the maximum planar distance, in degree units,
// at which an en-route unit counts as having reached the scene. 0.001 is
// roughly 100-110m at mid-latitudes.
const DefaultArrivalThreshold = 0.001

// Engine orchestrates dispatch requests, arrival checks and resolutions.
type Engine struct {
	store            store.FleetStore
	registry         *fleet.Registry
	hub              *broadcast.Hub
	log              logger.Logger
	arrivalThreshold float64
}

// NewEngine creates an Engine. If arrivalThreshold is zero or negative,
// DefaultArrivalThreshold is used.
func NewEngine(s store.FleetStore, reg *fleet.Registry, hub *broadcast.Hub, log logger.Logger, arrivalThreshold float64) (*Engine, error) {
	if s == nil || reg == nil || hub == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewEngine")
	}
	if arrivalThreshold <= 0 {
		arrivalThreshold = DefaultArrivalThreshold
	}
	return &Engine{
		store:            s,
		registry:         reg,
		hub:              hub,
		log:              log,
		arrivalThreshold: arrivalThreshold,
	}, nil
}

// Dispatch selects the nearest IDLE unit of the requested type and binds it
// to the incident. Candidates are scanned without holding the fleet lock;
// the claim re-verifies the unit is still IDLE under the lock and falls
// through to the next-nearest candidate when the race is lost. Distance ties
// are broken by store order (first candidate returned wins).
func (e *Engine) Dispatch(ctx context.Context, incidentID string, unitType model.UnitType) (Result, error) {
	start := time.Now()
	if !unitType.Valid() {
		return Result{}, fmt.Errorf("unknown unit type %q", unitType)
	}
	incident, err := e.store.GetIncident(ctx, incidentID)
	if err != nil {
		return Result{}, err
	}
	if incident.Status == model.IncidentResolved {
		dispatchesTotal.WithLabelValues(string(unitType), "rejected").Inc()
		return Result{}, fleet.ErrIncidentResolved
	}

	candidates, err := e.store.FindIdleUnitsByType(ctx, unitType)
	if err != nil {
		return Result{}, fmt.Errorf("find idle units: %w", err)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return geo.Euclidean(candidates[i].Position, incident.Location) <
			geo.Euclidean(candidates[j].Position, incident.Location)
	})

	for _, candidate := range candidates {
		asn, unit, err := e.registry.Claim(ctx, incidentID, candidate.ID)
		if errors.Is(err, fleet.ErrUnitUnavailable) {
			continue
		}
		if errors.Is(err, fleet.ErrIncidentResolved) {
			// A resolution landed after the pre-check; the claim refused it.
			dispatchesTotal.WithLabelValues(string(unitType), "rejected").Inc()
			return Result{}, err
		}
		if err != nil {
			return Result{}, err
		}
		dispatchesTotal.WithLabelValues(string(unitType), "dispatched").Inc()
		dispatchLatency.WithLabelValues(string(unitType)).Observe(time.Since(start).Seconds())
		e.log.Debugw("unit dispatched", map[string]any{
			"incident_id":   incidentID,
			"unit_id":       unit.ID,
			"unit_type":     unitType,
			"assignment_id": asn.ID,
			"distance_deg":  geo.Euclidean(unit.Position, incident.Location),
		})
		e.hub.Broadcast(ctx)
		return Result{OK: true, Assignment: &asn, Unit: &unit}, nil
	}

	dispatchesTotal.WithLabelValues(string(unitType), "no_candidate").Inc()
	return Result{OK: false, Reason: fmt.Sprintf("no units of type %s available", unitType)}, nil
}

// CheckArrival flips an ASSIGNED unit to BUSY once its distance to the
// incident scene drops within the arrival threshold. The assignment stays
// ACTIVE until the incident is resolved. An ASSIGNED unit without an active
// assignment is an invariant violation; it is counted and logged but never
// stops the caller's tick loop.
func (e *Engine) CheckArrival(ctx context.Context, unit model.Unit) error {
	if unit.Status != model.UnitAssigned {
		return nil
	}
	asn, ok, err := e.store.GetActiveAssignmentFor(ctx, unit.ID)
	if err != nil {
		return fmt.Errorf("active assignment for %s: %w", unit.ID, err)
	}
	if !ok {
		invariantViolations.Inc()
		e.log.Errorf("unit %s is ASSIGNED but has no active assignment", unit.ID)
		return nil
	}
	incident, err := e.store.GetIncident(ctx, asn.IncidentID)
	if err != nil {
		return fmt.Errorf("incident %s: %w", asn.IncidentID, err)
	}
	if geo.Euclidean(unit.Position, incident.Location) > e.arrivalThreshold {
		return nil
	}

	updated, err := e.registry.MarkBusy(ctx, unit.ID)
	if errors.Is(err, fleet.ErrNotAssigned) {
		// Lost the race against a resolution; nothing to do.
		return nil
	}
	if err != nil {
		return err
	}
	arrivalsTotal.Inc()
	e.log.Infof("unit %s arrived at incident %s", updated.Name, incident.ID)
	e.hub.Broadcast(ctx)
	return nil
}

// Resolve completes every ACTIVE assignment of the incident, frees the bound
// units and closes the incident. The transition is terminal; resolving or
// dispatching onto a resolved incident fails. The freed units are returned.
func (e *Engine) Resolve(ctx context.Context, incidentID string) ([]model.Unit, error) {
	freed, err := e.registry.ReleaseIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	incidentsResolvedTotal.Inc()
	unitsFreedTotal.Add(float64(len(freed)))
	e.log.Infof("incident %s resolved, %d units freed", incidentID, len(freed))
	e.hub.Broadcast(ctx)
	return freed, nil
}

// CreateIncident registers a new PENDING incident. Priority defaults to
// MEDIUM when left empty.
func (e *Engine) CreateIncident(ctx context.Context, incident model.Incident) (model.Incident, error) {
	if incident.Priority == "" {
		incident.Priority = model.PriorityMedium
	}
	if err := incident.Validate(); err != nil {
		return model.Incident{}, err
	}
	incident.ID = uuid.NewString()
	incident.Status = model.IncidentPending
	incident.CreatedAt = time.Now().UTC()
	if err := e.store.SaveIncident(ctx, incident); err != nil {
		return model.Incident{}, fmt.Errorf("save incident: %w", err)
	}
	e.log.Infof("incident %s created (%s, %s)", incident.ID, incident.Title, incident.Priority)
	return incident, nil
}

// ListIncidents returns all incidents, highest priority first.
func (e *Engine) ListIncidents(ctx context.Context) ([]model.Incident, error) {
	return e.store.ListIncidents(ctx)
}
