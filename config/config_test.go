package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
fleet:
  units:
    - name: Ambulance 1
      type: AMBULANCE
      lat: 40.4168
      lng: -3.7038
sim:
  tick_interval_ms: 500
api:
  addr: ":9999"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Fleet.Units) != 1 || cfg.Fleet.Units[0].Type != "AMBULANCE" {
		t.Errorf("unexpected fleet: %+v", cfg.Fleet)
	}
	if cfg.Sim.TickIntervalMS != 500 {
		t.Errorf("tick interval = %d, want 500", cfg.Sim.TickIntervalMS)
	}
	// Defaults fill the untouched sections.
	if cfg.Sim.ArrivalThresholdDegrees != 0.001 {
		t.Errorf("arrival threshold = %v, want 0.001", cfg.Sim.ArrivalThresholdDegrees)
	}
	if cfg.API.Addr != ":9999" {
		t.Errorf("api addr = %q", cfg.API.Addr)
	}
	if cfg.Metrics.PrometheusAddr != ":9090" {
		t.Errorf("prom addr = %q", cfg.Metrics.PrometheusAddr)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "api:\n  addr: \":8080\"\n")
	t.Setenv("FLEETOPS_API__ADDR", ":7070")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Addr != ":7070" {
		t.Errorf("api addr = %q, want :7070", cfg.API.Addr)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeTempConfig(t, "config.toml", "")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoadRejectsUnknownUnitType(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
fleet:
  units:
    - name: Mystery 1
      type: HELICOPTER
      lat: 40.0
      lng: -3.0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown unit type")
	}
}
