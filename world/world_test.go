package world

import (
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/config"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/physics"
	"github.com/milk9111/sandbox/prefabs"
	"github.com/milk9111/sandbox/rules"
)

func init() {
	logger.Discard()
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cfg := config.Default()
	cfg.World.Boundaries = false
	return New(cfg)
}

func noAir() *physics.Material {
	return &physics.Material{Restitution: 0, Friction: 0.1, AirFriction: 0, Density: 0.001}
}

func TestBouncingBoxScenario(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.SpawnBody(physics.KindBox, 400, 600, physics.SpawnOptions{Width: 800, Height: 40, Static: true}); err != nil {
		t.Fatalf("floor: %v", err)
	}
	box, err := w.SpawnBody(physics.KindBox, 400, 300, physics.SpawnOptions{Width: 40, Height: 40, Material: noAir()})
	if err != nil {
		t.Fatalf("box: %v", err)
	}
	startColor := box.Color

	if _, err := w.AddRule(rules.Spec{
		Targets: []physics.BodyID{box.ID},
		Trigger: rules.TriggerCollision,
		Actions: []rules.ActionSpec{
			{Type: "multiply_velocity", Value: -1.2},
			{Type: "random_color"},
		},
	}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	cfg := w.Simulator().Config()
	dt := cfg.TickMs / 1000 / float64(cfg.Substeps)

	for i := 0; i < 5000; i++ {
		before := box.Velocity().Y
		w.Store().Step(dt)
		if box.Color == startColor {
			continue
		}

		after := box.Velocity().Y
		if before <= 0 || after >= 0 {
			t.Fatalf("velocity did not flip: before %v after %v", before, after)
		}
		want := -1.2*before + 980*dt
		if math.Abs(after-want) > 1 {
			t.Fatalf("vy after contact = %v, want about %v", after, want)
		}
		if math.Abs(after) <= before {
			t.Fatalf("speed did not grow: %v -> %v", before, after)
		}
		for _, c := range rules.Palette() {
			if box.Color == c {
				return
			}
		}
		t.Fatalf("color %s not from palette", box.Color)
	}
	t.Fatalf("box never touched the floor")
}

func TestCollisionDirectionRules(t *testing.T) {
	cases := []struct {
		name     string
		gravity  cp.Vector
		obstacle physics.SpawnOptions
		at       cp.Vector
		velocity cp.Vector
		wantH    float64
		wantV    float64
	}{
		{
			name:     "falling onto floor",
			gravity:  cp.Vector{X: 0, Y: 980},
			obstacle: physics.SpawnOptions{Width: 800, Height: 40, Static: true},
			at:       cp.Vector{X: 400, Y: 600},
			wantV:    1,
		},
		{
			name:     "sliding into wall",
			obstacle: physics.SpawnOptions{Width: 40, Height: 400, Static: true},
			at:       cp.Vector{X: 600, Y: 300},
			velocity: cp.Vector{X: 300, Y: 0},
			wantH:    1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newTestWorld(t)
			w.SetGravity(tc.gravity)
			if _, err := w.SpawnBody(physics.KindBox, tc.at.X, tc.at.Y, tc.obstacle); err != nil {
				t.Fatalf("obstacle: %v", err)
			}
			box, err := w.SpawnBody(physics.KindBox, 400, 300, physics.SpawnOptions{
				Width: 40, Height: 40, Velocity: tc.velocity, Material: noAir(),
			})
			if err != nil {
				t.Fatalf("box: %v", err)
			}

			for trigger, name := range map[rules.TriggerKind]string{
				rules.TriggerCollisionHorizontal: "h",
				rules.TriggerCollisionVertical:   "v",
			} {
				if _, err := w.AddRule(rules.Spec{
					Targets: []physics.BodyID{box.ID},
					Trigger: trigger,
					Mode:    rules.ModePulse,
					Actions: []rules.ActionSpec{{Type: "add_variable", VariableName: name, Value: 1}},
				}); err != nil {
					t.Fatalf("add rule: %v", err)
				}
			}

			for i := 0; i < 120 && box.Vars.Get("h")+box.Vars.Get("v") == 0; i++ {
				w.Frame(1000.0/60.0, nil)
			}

			if got := box.Vars.Get("h"); got != tc.wantH {
				t.Fatalf("horizontal fired %v times, want %v", got, tc.wantH)
			}
			if got := box.Vars.Get("v"); got != tc.wantV {
				t.Fatalf("vertical fired %v times, want %v", got, tc.wantV)
			}
		})
	}
}

func TestZeroTimeScaleStillRunsRules(t *testing.T) {
	w := newTestWorld(t)
	box, _ := w.SpawnBody(physics.KindBox, 400, 300, physics.SpawnOptions{})
	if _, err := w.AddRule(rules.Spec{
		Targets: []physics.BodyID{box.ID},
		Trigger: rules.TriggerContinuous,
		Actions: []rules.ActionSpec{{Type: "add_variable", VariableName: "frames", Value: 1}},
	}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	w.SetTimeScale(0)
	start := box.Position()
	for i := 0; i < 3; i++ {
		if stats := w.Frame(16, nil); stats.Ticks != 0 {
			t.Fatalf("ticks = %d with time scale 0", stats.Ticks)
		}
	}
	if box.Position() != start {
		t.Fatalf("body moved while paused")
	}
	if box.Vars.Get("frames") != 3 {
		t.Fatalf("rules ran %v times, want 3", box.Vars.Get("frames"))
	}

	w.SetTimeScale(-2)
	if w.TimeScale() != 0 {
		t.Fatalf("negative time scale accepted")
	}
}

func TestHalfTimeScaleHalvesTicks(t *testing.T) {
	w := newTestWorld(t)
	w.SetTimeScale(0.5)

	total := 0
	for i := 0; i < 60; i++ {
		total += w.Frame(1000.0/60.0, nil).Ticks
	}
	if total != 30 {
		t.Fatalf("ticks = %d, want 30", total)
	}
}

func TestFrameKeys(t *testing.T) {
	w := newTestWorld(t)
	box, _ := w.SpawnBody(physics.KindBox, 400, 300, physics.SpawnOptions{})
	if _, err := w.AddRule(rules.Spec{
		Targets: []physics.BodyID{box.ID},
		Trigger: rules.TriggerKeyHeld,
		Key:     " ",
		Actions: []rules.ActionSpec{{Type: "add_variable", VariableName: "jumps", Value: 1}},
	}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	w.Frame(0, map[string]bool{"Space": true})
	w.SetKey("space", true)
	w.Frame(0, nil)
	w.SetKey("space", false)
	w.Frame(0, nil)

	if box.Vars.Get("jumps") != 2 {
		t.Fatalf("jumps = %v, want 2", box.Vars.Get("jumps"))
	}
}

func TestDeleteBodyClearsRules(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.SpawnBody(physics.KindBox, 100, 100, physics.SpawnOptions{})
	b, _ := w.SpawnBody(physics.KindBox, 200, 100, physics.SpawnOptions{})
	if _, err := w.AddConstraint(physics.ConstraintSpec{Kind: physics.ConstraintSpring, BodyA: a.ID, BodyB: b.ID}); err != nil {
		t.Fatalf("constraint: %v", err)
	}
	if _, err := w.AddRule(rules.Spec{Targets: []physics.BodyID{a.ID}, Trigger: rules.TriggerContinuous}); err != nil {
		t.Fatalf("rule: %v", err)
	}

	if !w.DeleteBody(a.ID) {
		t.Fatalf("delete failed")
	}
	if len(w.Rules().ListRules()) != 0 {
		t.Fatalf("rule survived its only target")
	}
	if len(w.Store().Constraints()) != 0 {
		t.Fatalf("constraint survived its body")
	}
	if w.DeleteBody(a.ID) {
		t.Fatalf("second delete succeeded")
	}
}

func TestResetRestoresConfiguredState(t *testing.T) {
	w := New(config.Default())
	if got := len(w.Store().Walls()); got != 4 {
		t.Fatalf("walls = %d, want 4", got)
	}
	w.SpawnBody(physics.KindCircle, 100, 100, physics.SpawnOptions{})
	w.SetGravity(cp.Vector{X: 0, Y: -50})
	w.SetTimeScale(3)

	w.Reset()
	if len(w.Bodies()) != 0 {
		t.Fatalf("bodies left after reset")
	}
	if g := w.Gravity(); g.Y != 980 {
		t.Fatalf("gravity = %v", g)
	}
	if w.TimeScale() != 1 {
		t.Fatalf("time scale = %v", w.TimeScale())
	}
	if got := len(w.Store().Walls()); got != 4 {
		t.Fatalf("walls = %d after reset", got)
	}
}

func TestSpawnPrefabRemapsIDs(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 3; i++ {
		w.SpawnBody(physics.KindBox, float64(100*i), 100, physics.SpawnOptions{})
	}

	res, err := w.SpawnPrefab(prefabs.NewLibrary(""), "pendulum", 600, 100)
	if err != nil {
		t.Fatalf("spawn prefab: %v", err)
	}
	bob := res.IDs["bob"]
	if bob != 4 {
		t.Fatalf("bob id = %d, want 4", bob)
	}
	c, ok := w.Store().Constraint(res.Constraints[0])
	if !ok || c.BodyA != 0 || c.BodyB != bob {
		t.Fatalf("constraint links %d-%d, want 0-%d", c.BodyA, c.BodyB, bob)
	}
}

func TestGrabMovesBodyTowardPointer(t *testing.T) {
	w := newTestWorld(t)
	w.SetGravity(cp.Vector{})
	box, _ := w.SpawnBody(physics.KindBox, 300, 300, physics.SpawnOptions{Width: 40, Height: 40})

	if got, ok := w.Grab(300, 300); !ok || got.ID != box.ID {
		t.Fatalf("grab missed the box")
	}
	w.Drag(400, 300)
	for i := 0; i < 60; i++ {
		w.Frame(1000.0/60.0, nil)
	}
	w.Release()

	if x := box.Position().X; x < 350 {
		t.Fatalf("box at x=%v, expected it to follow the pointer", x)
	}
	if _, ok := w.Store().Dragging(); ok {
		t.Fatalf("still dragging after release")
	}
}

func TestSnapshot(t *testing.T) {
	w := newTestWorld(t)
	w.SpawnBody(physics.KindCircle, 10, 20, physics.SpawnOptions{Radius: 7, Color: "#123456"})
	w.SpawnBody(physics.KindBox, 30, 40, physics.SpawnOptions{})

	snap := w.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d bodies", len(snap))
	}
	if snap[0].Radius != 7 || snap[0].Color != "#123456" || snap[0].X != 10 {
		t.Fatalf("circle snapshot %+v", snap[0])
	}
	if len(snap[1].Vertices) != 4 {
		t.Fatalf("box snapshot %+v", snap[1])
	}
}
