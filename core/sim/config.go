package sim

import "fmt"

// Config defines the simulation clock parameters loaded from configuration.
type Config struct {
	// TickIntervalMS is the clock period in milliseconds.
	TickIntervalMS int `json:"tick_interval_ms"`
	// JitterDegrees is the per-axis position perturbation applied to every
	// unit on each tick, in coordinate degrees.
	JitterDegrees float64 `json:"jitter_degrees"`
	// ArrivalThresholdDegrees is the distance at which an en-route unit
	// counts as arrived, in coordinate degrees.
	ArrivalThresholdDegrees float64 `json:"arrival_threshold_degrees"`
}

// SetDefaults applies the reference simulation parameters.
func (c *Config) SetDefaults() {
	if c.TickIntervalMS == 0 {
		c.TickIntervalMS = 3000
	}
	if c.JitterDegrees == 0 {
		c.JitterDegrees = 0.00025
	}
	if c.ArrivalThresholdDegrees == 0 {
		c.ArrivalThresholdDegrees = 0.001
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.TickIntervalMS < 0 {
		return fmt.Errorf("tick_interval_ms must not be negative")
	}
	if c.JitterDegrees < 0 {
		return fmt.Errorf("jitter_degrees must not be negative")
	}
	if c.ArrivalThresholdDegrees < 0 {
		return fmt.Errorf("arrival_threshold_degrees must not be negative")
	}
	return nil
}
