// Package memstore provides the in-memory FleetStore implementation backing
// the engine in single-process deployments and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/core/store"
)

// MemStore keeps all records in maps guarded by one RWMutex. Every call is
// atomic at the single-record level; cross-record consistency is the fleet
// registry's concern.
type MemStore struct {
	mu              sync.RWMutex
	units           map[string]model.Unit
	unitOrder       []string
	incidents       map[string]model.Incident
	assignments     map[string]model.Assignment
	assignmentOrder []string
}

// New creates an empty MemStore.
func New() *MemStore {
	return &MemStore{
		units:       make(map[string]model.Unit),
		incidents:   make(map[string]model.Incident),
		assignments: make(map[string]model.Assignment),
	}
}

// GetUnit returns the unit or store.ErrUnitNotFound.
func (s *MemStore) GetUnit(_ context.Context, id string) (model.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return model.Unit{}, store.ErrUnitNotFound
	}
	return u, nil
}

// ListUnits returns all units in registration order.
func (s *MemStore) ListUnits(_ context.Context) ([]model.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	units := make([]model.Unit, 0, len(s.unitOrder))
	for _, id := range s.unitOrder {
		units = append(units, s.units[id])
	}
	return units, nil
}

// FindIdleUnitsByType returns IDLE units of the given type in registration
// order.
func (s *MemStore) FindIdleUnitsByType(_ context.Context, t model.UnitType) ([]model.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var units []model.Unit
	for _, id := range s.unitOrder {
		u := s.units[id]
		if u.Status == model.UnitIdle && u.Type == t {
			units = append(units, u)
		}
	}
	return units, nil
}

// NearestIdleUnits answers the k-nearest spatial query over IDLE units of
// the given type using a kd-tree rebuilt per call. The fleet is small enough
// that rebuild cost is negligible next to scan clarity.
func (s *MemStore) NearestIdleUnits(ctx context.Context, t model.UnitType, p geo.Point, k int) ([]model.Unit, error) {
	idle, err := s.FindIdleUnitsByType(ctx, t)
	if err != nil {
		return nil, err
	}
	if k <= 0 || len(idle) == 0 {
		return nil, nil
	}
	return nearestByTree(idle, p, k), nil
}

// SaveUnit inserts or updates the unit record.
func (s *MemStore) SaveUnit(_ context.Context, u model.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if _, ok := s.units[u.ID]; !ok {
		s.unitOrder = append(s.unitOrder, u.ID)
	}
	s.units[u.ID] = u
	return nil
}

// GetIncident returns the incident or store.ErrIncidentNotFound.
func (s *MemStore) GetIncident(_ context.Context, id string) (model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.incidents[id]
	if !ok {
		return model.Incident{}, store.ErrIncidentNotFound
	}
	return i, nil
}

// ListIncidents returns incidents by priority descending, then creation
// time ascending.
func (s *MemStore) ListIncidents(_ context.Context) ([]model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	incidents := make([]model.Incident, 0, len(s.incidents))
	for _, i := range s.incidents {
		incidents = append(incidents, i)
	}
	sort.SliceStable(incidents, func(a, b int) bool {
		if incidents[a].Priority.Rank() != incidents[b].Priority.Rank() {
			return incidents[a].Priority.Rank() > incidents[b].Priority.Rank()
		}
		return incidents[a].CreatedAt.Before(incidents[b].CreatedAt)
	})
	return incidents, nil
}

// SaveIncident inserts or updates the incident record.
func (s *MemStore) SaveIncident(_ context.Context, i model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	s.incidents[i.ID] = i
	return nil
}

// CreateAssignment creates an ACTIVE assignment linking the unit to the
// incident.
func (s *MemStore) CreateAssignment(_ context.Context, incidentID, unitID string) (model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := model.Assignment{
		ID:         uuid.NewString(),
		IncidentID: incidentID,
		UnitID:     unitID,
		Status:     model.AssignmentActive,
		AssignedAt: time.Now().UTC(),
	}
	s.assignments[a.ID] = a
	s.assignmentOrder = append(s.assignmentOrder, a.ID)
	return a, nil
}

// GetActiveAssignmentsFor returns the incident's ACTIVE assignments in
// insertion order.
func (s *MemStore) GetActiveAssignmentsFor(_ context.Context, incidentID string) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []model.Assignment
	for _, id := range s.assignmentOrder {
		a := s.assignments[id]
		if a.IncidentID == incidentID && a.Status == model.AssignmentActive {
			active = append(active, a)
		}
	}
	return active, nil
}

// GetActiveAssignmentFor returns the unit's ACTIVE assignment, if any.
func (s *MemStore) GetActiveAssignmentFor(_ context.Context, unitID string) (model.Assignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.assignmentOrder {
		a := s.assignments[id]
		if a.UnitID == unitID && a.Status == model.AssignmentActive {
			return a, true, nil
		}
	}
	return model.Assignment{}, false, nil
}

// SaveAssignment updates the assignment record.
func (s *MemStore) SaveAssignment(_ context.Context, a model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID]; !ok {
		return store.ErrAssignmentNotFound
	}
	s.assignments[a.ID] = a
	return nil
}
