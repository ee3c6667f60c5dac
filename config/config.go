// Package config loads the service configuration from file and environment.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/urbanpulse/fleetops/core/sim"
	"github.com/urbanpulse/fleetops/infra/geocode"
	"github.com/urbanpulse/fleetops/infra/metrics"
	"github.com/urbanpulse/fleetops/infra/mqtt"
	"github.com/urbanpulse/fleetops/infra/routing"
)

// Config is the root configuration document.
type Config struct {
	Fleet   FleetConfig    `json:"fleet"`
	Sim     sim.Config     `json:"sim"`
	MQTT    mqtt.Config    `json:"mqtt"`
	Metrics metrics.Config `json:"metrics"`
	API     APIConfig      `json:"api"`
	Geocode geocode.Config `json:"geocode"`
	Routing routing.Config `json:"routing"`
}

// APIConfig defines the HTTP listener.
type APIConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Load reads the configuration file and applies environment overrides using
// the FLEETOPS_ prefix with __ as the section separator.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FLEETOPS_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fleetops_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Sim.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	if err := cfg.Sim.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Fleet.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
