package sim

import (
	"math"

	"github.com/milk9111/sandbox/config"
	"github.com/milk9111/sandbox/physics"
)

// tolerance absorbs rounding when a delta is an exact multiple of the tick.
const tolerance = 1e-9

type Config struct {
	TickMs            float64
	Substeps          int
	MaxFrameMs        float64
	AccelerationScale float64
}

func ConfigFrom(c config.Simulation) Config {
	return Config{
		TickMs:            c.TickMs,
		Substeps:          c.Substeps,
		MaxFrameMs:        c.MaxFrameMs,
		AccelerationScale: c.AccelerationScale,
	}
}

// Stepper is the part of the body store the simulator drives.
type Stepper interface {
	Bodies() []*physics.Body
	Step(dt float64)
}

// Simulator turns variable frame deltas into fixed ticks of equal substeps.
type Simulator struct {
	cfg         Config
	store       Stepper
	accumulator float64
	ticks       int
}

func New(store Stepper, cfg Config) *Simulator {
	if cfg.TickMs <= 0 {
		cfg.TickMs = 1000.0 / 60.0
	}
	if cfg.Substeps < 1 {
		cfg.Substeps = 1
	}
	if cfg.AccelerationScale == 0 {
		cfg.AccelerationScale = 1
	}
	return &Simulator{cfg: cfg, store: store}
}

func (s *Simulator) Config() Config {
	return s.cfg
}

// Advance adds a frame delta in milliseconds, already time-scaled, and runs
// every whole tick it covers. It returns the number of ticks run.
func (s *Simulator) Advance(frameDeltaMs float64) int {
	if s == nil || s.store == nil {
		return 0
	}
	if frameDeltaMs <= 0 || math.IsNaN(frameDeltaMs) {
		return 0
	}
	if s.cfg.MaxFrameMs > 0 && frameDeltaMs > s.cfg.MaxFrameMs {
		frameDeltaMs = s.cfg.MaxFrameMs
	}

	s.accumulator += frameDeltaMs
	ran := 0
	for s.accumulator+tolerance >= s.cfg.TickMs {
		s.accumulator -= s.cfg.TickMs
		s.tick()
		ran++
	}
	if s.accumulator < 0 {
		s.accumulator = 0
	}
	return ran
}

func (s *Simulator) tick() {
	dt := s.cfg.TickMs / 1000 / float64(s.cfg.Substeps)
	for i := 0; i < s.cfg.Substeps; i++ {
		s.applyAcceleration()
		s.store.Step(dt)
	}
	s.ticks++
}

func (s *Simulator) applyAcceleration() {
	for _, b := range s.store.Bodies() {
		if b.IsStatic() || (b.Acceleration.X == 0 && b.Acceleration.Y == 0) {
			continue
		}
		b.ApplyForce(b.Acceleration.Mult(b.Mass() * s.cfg.AccelerationScale))
	}
}

func (s *Simulator) Accumulator() float64 {
	return s.accumulator
}

func (s *Simulator) Ticks() int {
	return s.ticks
}

func (s *Simulator) Reset() {
	s.accumulator = 0
	s.ticks = 0
}
