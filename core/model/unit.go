// Package model defines the domain entities shared by the dispatch engine,
// the simulation clock and the broadcast hub.
package model

import (
	"fmt"
	"time"

	"github.com/urbanpulse/fleetops/core/geo"
)

// UnitType categorizes a mobile response unit. The dispatch algorithm is
// generic over the type; new categories only need a constant here.
type UnitType string

const (
	UnitAmbulance       UnitType = "AMBULANCE"
	UnitFire            UnitType = "FIRE"
	UnitNationalPolice  UnitType = "NATIONAL_POLICE"
	UnitMunicipalPolice UnitType = "MUNICIPAL_POLICE"
	UnitCivilGuard      UnitType = "CIVIL_GUARD"
)

// Valid reports whether t is a known unit type.
func (t UnitType) Valid() bool {
	switch t {
	case UnitAmbulance, UnitFire, UnitNationalPolice, UnitMunicipalPolice, UnitCivilGuard:
		return true
	}
	return false
}

// UnitStatus is the unit state machine:
// IDLE -> ASSIGNED (dispatch), ASSIGNED -> BUSY (arrival),
// ASSIGNED/BUSY -> IDLE (incident resolution). OFFLINE units never dispatch.
type UnitStatus string

const (
	UnitIdle     UnitStatus = "IDLE"
	UnitAssigned UnitStatus = "ASSIGNED"
	UnitBusy     UnitStatus = "BUSY"
	UnitOffline  UnitStatus = "OFFLINE"
)

// Unit is a mobile responder resource with a live position.
type Unit struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      UnitType   `json:"type"`
	Status    UnitStatus `json:"status"`
	Position  geo.Point  `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
}

// Validate checks that the unit definition is sound.
func (u Unit) Validate() error {
	if u.Name == "" {
		return fmt.Errorf("unit name is required")
	}
	if !u.Type.Valid() {
		return fmt.Errorf("unknown unit type %q", u.Type)
	}
	return nil
}
