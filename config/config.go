package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Simulation Simulation `yaml:"simulation"`
	World      World      `yaml:"world"`
	Rules      Rules      `yaml:"rules"`
	Prefabs    Prefabs    `yaml:"prefabs"`
	Storage    Storage    `yaml:"storage"`
	Server     Server     `yaml:"server"`
	Log        Log        `yaml:"log"`
}

type Simulation struct {
	TickMs            float64 `yaml:"tick_ms"`
	Substeps          int     `yaml:"substeps"`
	MaxFrameMs        float64 `yaml:"max_frame_ms"`
	AccelerationScale float64 `yaml:"acceleration_scale"`
	Iterations        int     `yaml:"iterations"`
	TimeScale         float64 `yaml:"time_scale"`
}

type World struct {
	Width         float64 `yaml:"width"`
	Height        float64 `yaml:"height"`
	Boundaries    bool    `yaml:"boundaries"`
	WallThickness float64 `yaml:"wall_thickness"`
	Gravity       Vec     `yaml:"gravity"`
}

type Vec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type Rules struct {
	Seed int64 `yaml:"seed"`
}

type Prefabs struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

type Storage struct {
	Dir string `yaml:"dir"`
	Key string `yaml:"key"`
}

type Server struct {
	Addr      string `yaml:"addr"`
	PublicURL string `yaml:"public_url"`
	LiveMs    int    `yaml:"live_ms"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Simulation: Simulation{
			TickMs:            1000.0 / 60.0,
			Substeps:          8,
			MaxFrameMs:        100,
			AccelerationScale: 1,
			Iterations:        10,
			TimeScale:         1,
		},
		World: World{
			Width:         1200,
			Height:        800,
			Boundaries:    true,
			WallThickness: 60,
			Gravity:       Vec{X: 0, Y: 980},
		},
		Rules:   Rules{Seed: 1},
		Prefabs: Prefabs{Dir: "prefabs"},
		Storage: Storage{Dir: ".", Key: "physics-sandbox-scene"},
		Server:  Server{Addr: ":8080", LiveMs: 10000},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load overlays the YAML file at path onto Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Simulation.TickMs <= 0 {
		return fmt.Errorf("simulation.tick_ms must be positive, got %v", c.Simulation.TickMs)
	}
	if c.Simulation.Substeps < 1 {
		return fmt.Errorf("simulation.substeps must be at least 1, got %d", c.Simulation.Substeps)
	}
	if c.Simulation.MaxFrameMs < 0 {
		return fmt.Errorf("simulation.max_frame_ms must not be negative, got %v", c.Simulation.MaxFrameMs)
	}
	if c.Simulation.Iterations < 1 {
		return fmt.Errorf("simulation.iterations must be at least 1, got %d", c.Simulation.Iterations)
	}
	if c.Simulation.TimeScale < 0 {
		return fmt.Errorf("simulation.time_scale must not be negative, got %v", c.Simulation.TimeScale)
	}
	return nil
}
