package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nathoo/simcore/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simcore.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Simulation.MaxDepth != 5 || cfg.Simulation.Policy != types.AllBranches {
		t.Errorf("Simulation = %+v", cfg.Simulation)
	}
	if cfg.Memory.Driver != DriverNone {
		t.Errorf("Memory.Driver = %q, want none", cfg.Memory.Driver)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
simulation:
  max_depth: 3
  policy: merge
  timeout: 2s
  max_children: 2
  sampling: seeded
  seed: 42
logging:
  level: debug
rules:
  dir: packs/forest
  watch: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s := cfg.Simulation
	if s.MaxDepth != 3 || s.Policy != types.Merge || s.Timeout != 2*time.Second {
		t.Errorf("Simulation = %+v", s)
	}
	if s.MaxChildren != 2 || s.Sampling != types.SampleSeeded || s.Seed != 42 {
		t.Errorf("sampling = %d %s %d", s.MaxChildren, s.Sampling, s.Seed)
	}
	if s.DecayRate != 0.8 || s.MaxBranches != 1024 {
		t.Errorf("unset keys lost their defaults: %+v", s)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Rules.Dir != "packs/forest" || !cfg.Rules.Watch {
		t.Errorf("Rules = %+v", cfg.Rules)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "simulation:\n  max_depth: 3\n")
	dbPath := filepath.Join(t.TempDir(), "episodes.db")
	t.Setenv("SIMCORE_SIMULATION_MAX_DEPTH", "7")
	t.Setenv("SIMCORE_SIMULATION_DECAY_RATE", "0.5")
	t.Setenv("SIMCORE_MEMORY_DRIVER", "sqlite")
	t.Setenv("SIMCORE_MEMORY_PATH", dbPath)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Simulation.MaxDepth != 7 {
		t.Errorf("MaxDepth = %d, want env value 7", cfg.Simulation.MaxDepth)
	}
	if cfg.Simulation.DecayRate != 0.5 {
		t.Errorf("DecayRate = %v, want 0.5", cfg.Simulation.DecayRate)
	}
	if cfg.Memory.Driver != DriverSQLite || cfg.Memory.Path != dbPath {
		t.Errorf("Memory = %+v", cfg.Memory)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Simulation != Default().Simulation {
		t.Errorf("Simulation = %+v, want defaults", cfg.Simulation)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad policy", "simulation:\n  policy: random\n", "Simulation.Policy"},
		{"bad decay", "simulation:\n  decay_rate: 1.5\n", "Simulation.DecayRate"},
		{"zero depth", "simulation:\n  max_depth: 0\n", "Simulation.MaxDepth"},
		{"zero steps", "simulation:\n  max_steps: 0\n", "Simulation.MaxSteps"},
		{"bad level", "logging:\n  level: loud\n", "Logging.Level"},
		{"sqlite without path", "memory:\n  driver: sqlite\n", "Memory.Path is required"},
		{"postgres without dsn", "memory:\n  driver: postgres\n", "Memory.DSN is required"},
		{"bad yaml", "simulation: [\n", "reading config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Simulation.Workers = 0
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"Simulation.Workers", "Logging.Format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
