package config

import (
	"fmt"

	"github.com/urbanpulse/fleetops/core/model"
)

// UnitSeed describes one unit provisioned into the store at startup.
type UnitSeed struct {
	Name string  `json:"name"`
	Type string  `json:"type"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// FleetConfig lists the units the service starts with. Fleet provisioning
// is out-of-band for the engine itself; this stands in for the durable
// roster a production deployment would load.
type FleetConfig struct {
	Units []UnitSeed `json:"units"`
}

// Validate checks every seed references a known unit type.
func (c FleetConfig) Validate() error {
	for i, u := range c.Units {
		if u.Name == "" {
			return fmt.Errorf("fleet.units[%d]: name is required", i)
		}
		if !model.UnitType(u.Type).Valid() {
			return fmt.Errorf("fleet.units[%d]: unknown unit type %q", i, u.Type)
		}
	}
	return nil
}
