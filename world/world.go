package world

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/config"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/physics"
	"github.com/milk9111/sandbox/prefabs"
	"github.com/milk9111/sandbox/rules"
	"github.com/milk9111/sandbox/sim"
	"github.com/sirupsen/logrus"
)

// World ties the body store, rule engine and simulator together. Every
// piece of sandbox state lives here; nothing is global.
type World struct {
	cfg config.Config

	store  *physics.Store
	engine *rules.Engine
	sim    *sim.Simulator

	timeScale  float64
	keys       map[string]bool
	collisions int
	frames     int
}

type FrameStats struct {
	Ticks      int
	Collisions int
	Bodies     int
}

func New(cfg config.Config) *World {
	store := physics.NewStore(physics.Options{
		Gravity:    gravityOf(cfg.World.Gravity),
		Iterations: cfg.Simulation.Iterations,
	})

	w := &World{
		cfg:       cfg,
		store:     store,
		engine:    rules.NewEngine(store, cfg.Rules.Seed),
		sim:       sim.New(store, sim.ConfigFrom(cfg.Simulation)),
		timeScale: cfg.Simulation.TimeScale,
		keys:      make(map[string]bool),
	}
	store.SetCollisionListener(w.onCollisions)
	w.applyBoundaries()
	return w
}

func (w *World) onCollisions(pairs []physics.CollisionPair) {
	w.collisions += len(pairs)
	w.engine.EvaluateCollisions(pairs)
}

func (w *World) applyBoundaries() {
	if !w.cfg.World.Boundaries {
		w.store.ClearBoundaries()
		return
	}
	w.store.SetBoundaries(w.cfg.World.Width, w.cfg.World.Height, w.cfg.World.WallThickness)
}

// Frame advances the world by one rendered frame. The delta is scaled by
// the time scale before the fixed-step loop sees it; the continuous rule
// pass runs once regardless. A nil keys map uses the keys set by SetKey.
func (w *World) Frame(rawDeltaMs float64, keys map[string]bool) FrameStats {
	w.collisions = 0
	ticks := w.sim.Advance(rawDeltaMs * w.timeScale)

	pressed := w.keys
	if keys != nil {
		pressed = make(map[string]bool, len(keys))
		for k, down := range keys {
			if down {
				pressed[rules.NormalizeKey(k)] = true
			}
		}
	}

	bodies := w.store.Bodies()
	w.engine.EvaluateContinuous(bodies, pressed)
	w.frames++

	return FrameStats{Ticks: ticks, Collisions: w.collisions, Bodies: len(w.store.Bodies())}
}

// SetKey records a key going down or up.
func (w *World) SetKey(key string, down bool) {
	key = rules.NormalizeKey(key)
	if down {
		w.keys[key] = true
		return
	}
	delete(w.keys, key)
}

func (w *World) SetTimeScale(s float64) {
	if s < 0 || math.IsNaN(s) {
		s = 0
	}
	w.timeScale = s
}

func (w *World) TimeScale() float64 { return w.timeScale }

func (w *World) Frames() int { return w.frames }

func (w *World) Config() config.Config { return w.cfg }

func (w *World) Store() *physics.Store { return w.store }

func (w *World) Rules() *rules.Engine { return w.engine }

func (w *World) Simulator() *sim.Simulator { return w.sim }

func (w *World) Gravity() cp.Vector { return w.store.Gravity() }

func (w *World) SetGravity(g cp.Vector) { w.store.SetGravity(g) }

func (w *World) SpawnBody(kind physics.Kind, x, y float64, opts physics.SpawnOptions) (*physics.Body, error) {
	return w.store.Spawn(kind, x, y, opts)
}

// DeleteBody removes a body, its constraints and its rule bindings.
func (w *World) DeleteBody(id physics.BodyID) bool {
	if !w.store.Remove(id) {
		return false
	}
	w.engine.ClearRules(&id)
	return true
}

func (w *World) Body(id physics.BodyID) (*physics.Body, bool) {
	return w.store.Body(id)
}

func (w *World) Bodies() []*physics.Body {
	return w.store.Bodies()
}

func (w *World) AddConstraint(spec physics.ConstraintSpec) (*physics.Constraint, error) {
	return w.store.AddConstraint(spec)
}

func (w *World) RemoveConstraint(id physics.ConstraintID) bool {
	return w.store.RemoveConstraint(id)
}

func (w *World) ClearConstraints() {
	w.store.ClearConstraints()
}

func (w *World) AddRule(spec rules.Spec) (*rules.Rule, error) {
	return w.engine.AddRule(spec)
}

func (w *World) RemoveRule(id rules.RuleID) bool {
	return w.engine.RemoveRule(id)
}

func (w *World) UpdateRule(id rules.RuleID, patch rules.Patch) error {
	return w.engine.UpdateRule(id, patch)
}

// SpawnPrefab places template name from lib at (x, y).
func (w *World) SpawnPrefab(lib *prefabs.Library, name string, x, y float64) (prefabs.Result, error) {
	res, err := lib.Spawn(w, name, x, y)
	if err != nil {
		return res, err
	}
	logger.Log.WithFields(logrus.Fields{
		"prefab": name,
		"bodies": res.Bodies,
	}).Info("world: spawned prefab")
	return res, nil
}

// Grab picks up the dynamic body under (x, y).
func (w *World) Grab(x, y float64) (*physics.Body, bool) {
	return w.store.Grab(cp.Vector{X: x, Y: y})
}

func (w *World) Drag(x, y float64) {
	w.store.Drag(cp.Vector{X: x, Y: y})
}

func (w *World) Release() {
	w.store.Release()
}

// Clear removes every body, constraint and rule. Boundary walls stay.
func (w *World) Clear() {
	w.store.Release()
	w.store.ClearBodies()
	w.store.ClearConstraints()
	w.engine.ClearRules(nil)
}

// Reset clears the world and restores configured gravity, time scale,
// boundaries and rule randomness.
func (w *World) Reset() {
	w.Clear()
	w.store.SetGravity(gravityOf(w.cfg.World.Gravity))
	w.timeScale = w.cfg.Simulation.TimeScale
	w.engine.Reseed(w.cfg.Rules.Seed)
	w.sim.Reset()
	w.keys = make(map[string]bool)
	w.applyBoundaries()
}

// BodyState is a render-ready view of one body.
type BodyState struct {
	ID       physics.BodyID `json:"id"`
	Kind     physics.Kind   `json:"type"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Angle    float64        `json:"angle"`
	Color    string         `json:"color"`
	Radius   float64        `json:"radius,omitempty"`
	Vertices []cp.Vector    `json:"vertices,omitempty"`
}

// Snapshot lists the current state of every user body.
func (w *World) Snapshot() []BodyState {
	bodies := w.store.Bodies()
	out := make([]BodyState, 0, len(bodies))
	for _, b := range bodies {
		p := b.Position()
		st := BodyState{ID: b.ID, Kind: b.Kind, X: p.X, Y: p.Y, Angle: b.Angle(), Color: b.Color}
		if b.Radius() > 0 {
			st.Radius = b.Radius()
		} else {
			st.Vertices = b.Vertices()
		}
		out = append(out, st)
	}
	return out
}

func gravityOf(v config.Vec) cp.Vector {
	return cp.Vector{X: v.X, Y: v.Y}
}
