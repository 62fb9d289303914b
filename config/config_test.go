package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sandbox.yaml")
	data := []byte("simulation:\n  substeps: 4\nworld:\n  gravity:\n    x: 0\n    y: 500\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.Substeps != 4 {
		t.Fatalf("expected substeps 4, got %d", cfg.Simulation.Substeps)
	}
	if cfg.World.Gravity.Y != 500 {
		t.Fatalf("expected gravity y 500, got %v", cfg.World.Gravity.Y)
	}
	if cfg.Simulation.MaxFrameMs != 100 {
		t.Fatalf("expected default max_frame_ms to survive, got %v", cfg.Simulation.MaxFrameMs)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "zero substeps", body: "simulation:\n  substeps: 0\n"},
		{name: "negative tick", body: "simulation:\n  tick_ms: -1\n"},
		{name: "negative time scale", body: "simulation:\n  time_scale: -2\n"},
		{name: "bad yaml", body: "simulation: [\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults")
	}
}
