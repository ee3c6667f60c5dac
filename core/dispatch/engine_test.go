package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/urbanpulse/fleetops/core/broadcast"
	"github.com/urbanpulse/fleetops/core/fleet"
	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/core/store"
	"github.com/urbanpulse/fleetops/infra/memstore"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

func newTestEngine(t *testing.T) (*Engine, *memstore.MemStore) {
	t.Helper()
	st := memstore.New()
	hub := broadcast.NewHub(st, nopLogger{})
	eng, err := NewEngine(st, fleet.NewRegistry(st), hub, nopLogger{}, 0)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng, st
}

func addUnit(t *testing.T, st *memstore.MemStore, name string, typ model.UnitType, status model.UnitStatus, lat, lng float64) model.Unit {
	t.Helper()
	u := model.Unit{
		ID:       name,
		Name:     name,
		Type:     typ,
		Status:   status,
		Position: geo.Point{Lat: lat, Lng: lng},
	}
	if err := st.SaveUnit(context.Background(), u); err != nil {
		t.Fatalf("save unit: %v", err)
	}
	return u
}

func addIncident(t *testing.T, st *memstore.MemStore, id string, lat, lng float64) model.Incident {
	t.Helper()
	inc := model.Incident{
		ID:       id,
		Title:    "test incident",
		Priority: model.PriorityMedium,
		Location: geo.Point{Lat: lat, Lng: lng},
		Status:   model.IncidentPending,
	}
	if err := st.SaveIncident(context.Background(), inc); err != nil {
		t.Fatalf("save incident: %v", err)
	}
	return inc
}

func TestDispatchSelectsNearestUnit(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	addUnit(t, st, "far", model.UnitAmbulance, model.UnitIdle, 40.4050, -3.7050)
	near := addUnit(t, st, "near", model.UnitAmbulance, model.UnitIdle, 40.4001, -3.7001)
	addIncident(t, st, "inc-1", 40.4000, -3.7000)

	res, err := eng.Dispatch(ctx, "inc-1", model.UnitAmbulance)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !res.OK {
		t.Fatalf("dispatch not OK: %s", res.Reason)
	}
	if res.Unit.ID != near.ID {
		t.Errorf("dispatched %s, want %s", res.Unit.ID, near.ID)
	}
	if res.Unit.Status != model.UnitAssigned {
		t.Errorf("unit status = %s, want ASSIGNED", res.Unit.Status)
	}
	if res.Assignment.Status != model.AssignmentActive {
		t.Errorf("assignment status = %s, want ACTIVE", res.Assignment.Status)
	}

	inc, err := st.GetIncident(ctx, "inc-1")
	if err != nil {
		t.Fatalf("get incident: %v", err)
	}
	if inc.Status != model.IncidentAssigned {
		t.Errorf("incident status = %s, want ASSIGNED", inc.Status)
	}
	other, _ := st.GetUnit(ctx, "far")
	if other.Status != model.UnitIdle {
		t.Errorf("untouched unit status = %s, want IDLE", other.Status)
	}
}

func TestDispatchNoCandidates(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	addUnit(t, st, "busy", model.UnitFire, model.UnitBusy, 40.0, -3.0)
	addIncident(t, st, "inc-1", 40.0, -3.0)

	res, err := eng.Dispatch(ctx, "inc-1", model.UnitFire)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.OK {
		t.Fatal("expected failed dispatch")
	}
	if res.Reason == "" {
		t.Error("expected a human-readable reason")
	}

	// A failed dispatch mutates nothing.
	inc, _ := st.GetIncident(ctx, "inc-1")
	if inc.Status != model.IncidentPending {
		t.Errorf("incident status = %s, want PENDING", inc.Status)
	}
	u, _ := st.GetUnit(ctx, "busy")
	if u.Status != model.UnitBusy {
		t.Errorf("unit status = %s, want BUSY", u.Status)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	eng, st := newTestEngine(t)
	addIncident(t, st, "inc-1", 40.0, -3.0)
	if _, err := eng.Dispatch(context.Background(), "inc-1", "HELICOPTER"); err == nil {
		t.Fatal("expected error for unknown unit type")
	}
}

func TestDispatchUnknownIncident(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.Dispatch(context.Background(), "missing", model.UnitAmbulance)
	if !errors.Is(err, store.ErrIncidentNotFound) {
		t.Fatalf("err = %v, want ErrIncidentNotFound", err)
	}
}

func TestDispatchResolvedIncidentRejected(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	addUnit(t, st, "u1", model.UnitAmbulance, model.UnitIdle, 40.0, -3.0)
	inc := addIncident(t, st, "inc-1", 40.0, -3.0)
	inc.Status = model.IncidentResolved
	if err := st.SaveIncident(ctx, inc); err != nil {
		t.Fatalf("save incident: %v", err)
	}

	_, err := eng.Dispatch(ctx, "inc-1", model.UnitAmbulance)
	if !errors.Is(err, fleet.ErrIncidentResolved) {
		t.Fatalf("err = %v, want ErrIncidentResolved", err)
	}
}

// hookedStore runs a callback inside the candidate scan, opening the window
// between selection and claim.
type hookedStore struct {
	*memstore.MemStore
	onFindIdle func()
}

func (s *hookedStore) FindIdleUnitsByType(ctx context.Context, t model.UnitType) ([]model.Unit, error) {
	if s.onFindIdle != nil {
		s.onFindIdle()
	}
	return s.MemStore.FindIdleUnitsByType(ctx, t)
}

func TestDispatchRacingResolveRejected(t *testing.T) {
	mem := memstore.New()
	st := &hookedStore{MemStore: mem}
	hub := broadcast.NewHub(st, nopLogger{})
	eng, err := NewEngine(st, fleet.NewRegistry(st), hub, nopLogger{}, 0)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ctx := context.Background()
	addUnit(t, mem, "u1", model.UnitAmbulance, model.UnitIdle, 40.0, -3.0)
	addIncident(t, mem, "inc-1", 40.0, -3.0)

	// Resolution lands after the candidate scan but before the claim.
	st.onFindIdle = func() {
		st.onFindIdle = nil
		if _, err := eng.Resolve(ctx, "inc-1"); err != nil {
			t.Errorf("resolve: %v", err)
		}
	}

	_, err = eng.Dispatch(ctx, "inc-1", model.UnitAmbulance)
	if !errors.Is(err, fleet.ErrIncidentResolved) {
		t.Fatalf("dispatch err = %v, want ErrIncidentResolved", err)
	}
	u, _ := mem.GetUnit(ctx, "u1")
	if u.Status != model.UnitIdle {
		t.Errorf("unit status = %s, want IDLE", u.Status)
	}
	if _, ok, _ := mem.GetActiveAssignmentFor(ctx, "u1"); ok {
		t.Error("dispatch onto a resolved incident left an active assignment")
	}
	inc, _ := mem.GetIncident(ctx, "inc-1")
	if inc.Status != model.IncidentResolved {
		t.Errorf("incident status = %s, want RESOLVED", inc.Status)
	}
}

func TestDispatchConcurrentSingleUnit(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	addUnit(t, st, "only", model.UnitAmbulance, model.UnitIdle, 40.0, -3.0)
	const n = 16
	for i := 0; i < n; i++ {
		addIncident(t, st, string(rune('a'+i)), 40.0, -3.0)
	}

	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = eng.Dispatch(ctx, string(rune('a'+i)), model.UnitAmbulance)
		}(i)
	}
	wg.Wait()

	var successes int
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("dispatch %d: %v", i, errs[i])
		}
		if results[i].OK {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
}

func TestResolveFreesUnits(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	addUnit(t, st, "u1", model.UnitAmbulance, model.UnitIdle, 40.0, -3.0)
	addUnit(t, st, "u2", model.UnitFire, model.UnitIdle, 40.0, -3.0)
	addIncident(t, st, "inc-1", 40.0, -3.0)

	for _, typ := range []model.UnitType{model.UnitAmbulance, model.UnitFire} {
		res, err := eng.Dispatch(ctx, "inc-1", typ)
		if err != nil || !res.OK {
			t.Fatalf("dispatch %s: ok=%v err=%v", typ, res.OK, err)
		}
	}

	freed, err := eng.Resolve(ctx, "inc-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(freed) != 2 {
		t.Fatalf("freed %d units, want 2", len(freed))
	}
	for _, id := range []string{"u1", "u2"} {
		u, _ := st.GetUnit(ctx, id)
		if u.Status != model.UnitIdle {
			t.Errorf("unit %s status = %s, want IDLE", id, u.Status)
		}
		if _, ok, _ := st.GetActiveAssignmentFor(ctx, id); ok {
			t.Errorf("unit %s still has an active assignment", id)
		}
	}
	inc, _ := st.GetIncident(ctx, "inc-1")
	if inc.Status != model.IncidentResolved {
		t.Errorf("incident status = %s, want RESOLVED", inc.Status)
	}

	// Resolution is terminal.
	if _, err := eng.Resolve(ctx, "inc-1"); !errors.Is(err, fleet.ErrIncidentResolved) {
		t.Fatalf("second resolve err = %v, want ErrIncidentResolved", err)
	}
}

func TestCheckArrival(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	addUnit(t, st, "u1", model.UnitAmbulance, model.UnitIdle, 40.4050, -3.7050)
	addIncident(t, st, "inc-1", 40.4000, -3.7000)
	res, err := eng.Dispatch(ctx, "inc-1", model.UnitAmbulance)
	if err != nil || !res.OK {
		t.Fatalf("dispatch: ok=%v err=%v", res.OK, err)
	}

	// Still out of range.
	u, _ := st.GetUnit(ctx, "u1")
	if err := eng.CheckArrival(ctx, u); err != nil {
		t.Fatalf("check arrival: %v", err)
	}
	u, _ = st.GetUnit(ctx, "u1")
	if u.Status != model.UnitAssigned {
		t.Fatalf("unit status = %s, want ASSIGNED", u.Status)
	}

	// Move onto the scene and re-check.
	u.Position = geo.Point{Lat: 40.4001, Lng: -3.7001}
	if err := st.SaveUnit(ctx, u); err != nil {
		t.Fatalf("save unit: %v", err)
	}
	if err := eng.CheckArrival(ctx, u); err != nil {
		t.Fatalf("check arrival: %v", err)
	}
	u, _ = st.GetUnit(ctx, "u1")
	if u.Status != model.UnitBusy {
		t.Fatalf("unit status = %s, want BUSY", u.Status)
	}
	// The assignment stays ACTIVE until resolution.
	if _, ok, _ := st.GetActiveAssignmentFor(ctx, "u1"); !ok {
		t.Fatal("active assignment dropped on arrival")
	}

	// BUSY units are skipped.
	if err := eng.CheckArrival(ctx, u); err != nil {
		t.Fatalf("check arrival on busy unit: %v", err)
	}
}

func TestCreateIncidentDefaults(t *testing.T) {
	eng, _ := newTestEngine(t)
	inc, err := eng.CreateIncident(context.Background(), model.Incident{
		Title:    "gas leak",
		Location: geo.Point{Lat: 40.0, Lng: -3.0},
	})
	if err != nil {
		t.Fatalf("create incident: %v", err)
	}
	if inc.Priority != model.PriorityMedium {
		t.Errorf("priority = %s, want MEDIUM", inc.Priority)
	}
	if inc.Status != model.IncidentPending {
		t.Errorf("status = %s, want PENDING", inc.Status)
	}
	if inc.ID == "" || inc.CreatedAt.IsZero() {
		t.Error("expected generated id and timestamp")
	}
}

func TestCreateIncidentRequiresTitle(t *testing.T) {
	eng, _ := newTestEngine(t)
	if _, err := eng.CreateIncident(context.Background(), model.Incident{}); err == nil {
		t.Fatal("expected validation error")
	}
}
