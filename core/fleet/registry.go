// Package fleet owns the lock discipline for unit and assignment mutations.
// The dispatch engine and the simulation clock both hold a reference to one
// Registry; every read-check-write sequence over shared fleet state goes
// through it so concurrent dispatch calls and clock ticks cannot interleave
// destructively.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/core/store"
)

// ErrUnitUnavailable is returned by Claim when the unit is no longer IDLE.
// Callers retry against the next-nearest candidate.
var ErrUnitUnavailable = errors.New("unit is no longer idle")

// ErrNotAssigned is returned by MarkBusy when the unit left the ASSIGNED
// state between the arrival check and the transition.
var ErrNotAssigned = errors.New("unit is not assigned")

// ErrIncidentResolved is returned when an operation targets an incident in
// its terminal state.
var ErrIncidentResolved = errors.New("incident already resolved")

// Registry serializes fleet mutations behind a single mutex. A global lock
// is sufficient at this scale; the store only guarantees single-record
// atomicity.
type Registry struct {
	mu    sync.Mutex
	store store.FleetStore
}

// NewRegistry creates a Registry over the given store.
func NewRegistry(s store.FleetStore) *Registry {
	return &Registry{store: s}
}

// Claim atomically verifies the unit is still IDLE and the incident is not
// RESOLVED, flips the unit to ASSIGNED and creates an ACTIVE assignment. If
// the incident was PENDING it becomes ASSIGNED. The caller selects the
// candidate beforehand without holding the lock; Claim re-verifies both
// records under it, so a resolution landing between selection and claim
// rejects the claim instead of binding a unit to a closed incident.
func (r *Registry) Claim(ctx context.Context, incidentID, unitID string) (model.Assignment, model.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, err := r.store.GetUnit(ctx, unitID)
	if err != nil {
		return model.Assignment{}, model.Unit{}, err
	}
	if unit.Status != model.UnitIdle {
		return model.Assignment{}, model.Unit{}, ErrUnitUnavailable
	}
	incident, err := r.store.GetIncident(ctx, incidentID)
	if err != nil {
		return model.Assignment{}, model.Unit{}, err
	}
	if incident.Status == model.IncidentResolved {
		return model.Assignment{}, model.Unit{}, ErrIncidentResolved
	}

	// The unit flip commits first; the assignment is created last so a
	// store failure can never leave an ACTIVE assignment on an IDLE unit.
	unit.Status = model.UnitAssigned
	if err := r.store.SaveUnit(ctx, unit); err != nil {
		return model.Assignment{}, model.Unit{}, fmt.Errorf("save unit: %w", err)
	}
	asn, err := r.store.CreateAssignment(ctx, incidentID, unitID)
	if err != nil {
		unit.Status = model.UnitIdle
		if saveErr := r.store.SaveUnit(ctx, unit); saveErr != nil {
			return model.Assignment{}, model.Unit{}, fmt.Errorf("create assignment: %w (revert unit: %v)", err, saveErr)
		}
		return model.Assignment{}, model.Unit{}, fmt.Errorf("create assignment: %w", err)
	}

	if incident.Status == model.IncidentPending {
		incident.Status = model.IncidentAssigned
		if err := r.store.SaveIncident(ctx, incident); err != nil {
			return model.Assignment{}, model.Unit{}, fmt.Errorf("save incident: %w", err)
		}
	}
	return asn, unit, nil
}

// Move applies fn to the unit's position. Only the position is touched, so a
// concurrent status transition is never overwritten by a stale copy.
func (r *Registry) Move(ctx context.Context, unitID string, fn func(geo.Point) geo.Point) (model.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, err := r.store.GetUnit(ctx, unitID)
	if err != nil {
		return model.Unit{}, err
	}
	unit.Position = fn(unit.Position)
	if err := r.store.SaveUnit(ctx, unit); err != nil {
		return model.Unit{}, fmt.Errorf("save unit: %w", err)
	}
	return unit, nil
}

// MarkBusy transitions the unit ASSIGNED -> BUSY after arrival. The status
// is re-verified under the lock so a concurrent resolution that already
// freed the unit wins.
func (r *Registry) MarkBusy(ctx context.Context, unitID string) (model.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, err := r.store.GetUnit(ctx, unitID)
	if err != nil {
		return model.Unit{}, err
	}
	if unit.Status != model.UnitAssigned {
		return model.Unit{}, ErrNotAssigned
	}
	unit.Status = model.UnitBusy
	if err := r.store.SaveUnit(ctx, unit); err != nil {
		return model.Unit{}, fmt.Errorf("save unit: %w", err)
	}
	return unit, nil
}

// ReleaseIncident completes every ACTIVE assignment of the incident, frees
// the bound units back to IDLE and marks the incident RESOLVED. Non-ACTIVE
// assignments are left untouched. The freed units are returned for
// broadcasting.
func (r *Registry) ReleaseIncident(ctx context.Context, incidentID string) ([]model.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	incident, err := r.store.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.Status == model.IncidentResolved {
		return nil, ErrIncidentResolved
	}

	assignments, err := r.store.GetActiveAssignmentsFor(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("active assignments: %w", err)
	}
	var freed []model.Unit
	for _, asn := range assignments {
		asn.Status = model.AssignmentCompleted
		if err := r.store.SaveAssignment(ctx, asn); err != nil {
			return freed, fmt.Errorf("save assignment %s: %w", asn.ID, err)
		}
		unit, err := r.store.GetUnit(ctx, asn.UnitID)
		if err != nil {
			return freed, err
		}
		unit.Status = model.UnitIdle
		if err := r.store.SaveUnit(ctx, unit); err != nil {
			return freed, fmt.Errorf("save unit %s: %w", unit.ID, err)
		}
		freed = append(freed, unit)
	}

	incident.Status = model.IncidentResolved
	if err := r.store.SaveIncident(ctx, incident); err != nil {
		return freed, fmt.Errorf("save incident: %w", err)
	}
	return freed, nil
}
