// Package store defines the persistence contract consumed by the dispatch
// engine and the simulation clock. All calls are atomic at the single-record
// level; multi-record consistency is the fleet registry's responsibility.
package store

import (
	"context"
	"errors"

	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/model"
)

// Sentinel errors returned for missing records. Callers distinguish them
// from transient store failures, which are returned as-is.
var (
	ErrUnitNotFound       = errors.New("unit not found")
	ErrIncidentNotFound   = errors.New("incident not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// FleetStore persists units, incidents and assignments.
type FleetStore interface {
	GetUnit(ctx context.Context, id string) (model.Unit, error)
	ListUnits(ctx context.Context) ([]model.Unit, error)
	// FindIdleUnitsByType returns all IDLE units of the given type in a
	// stable but otherwise arbitrary order.
	FindIdleUnitsByType(ctx context.Context, t model.UnitType) ([]model.Unit, error)
	// NearestIdleUnits returns up to k IDLE units of the given type ordered
	// by planar distance to p.
	NearestIdleUnits(ctx context.Context, t model.UnitType, p geo.Point, k int) ([]model.Unit, error)
	SaveUnit(ctx context.Context, u model.Unit) error

	GetIncident(ctx context.Context, id string) (model.Incident, error)
	// ListIncidents returns incidents ordered by priority descending, then
	// creation time ascending.
	ListIncidents(ctx context.Context) ([]model.Incident, error)
	SaveIncident(ctx context.Context, i model.Incident) error

	// CreateAssignment creates an ACTIVE assignment linking the unit to the
	// incident and returns it.
	CreateAssignment(ctx context.Context, incidentID, unitID string) (model.Assignment, error)
	// GetActiveAssignmentsFor returns the incident's ACTIVE assignments in
	// insertion order.
	GetActiveAssignmentsFor(ctx context.Context, incidentID string) ([]model.Assignment, error)
	// GetActiveAssignmentFor returns the unit's ACTIVE assignment, if any.
	GetActiveAssignmentFor(ctx context.Context, unitID string) (model.Assignment, bool, error)
	SaveAssignment(ctx context.Context, a model.Assignment) error
}
