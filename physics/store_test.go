package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/jakecoffman/cp"
)

const subDt = 1.0 / 480.0

func newTestStore() *Store {
	return NewStore(Options{Gravity: cp.Vector{X: 0, Y: 980}, Iterations: 10})
}

func TestSpawnAssignsIncreasingIDs(t *testing.T) {
	s := newTestStore()

	a, err := s.Spawn(KindBox, 100, 100, SpawnOptions{})
	if err != nil {
		t.Fatalf("spawn a: %v", err)
	}
	b, err := s.Spawn(KindCircle, 200, 100, SpawnOptions{ID: 10})
	if err != nil {
		t.Fatalf("spawn b: %v", err)
	}
	c, err := s.Spawn(KindPolygon, 300, 100, SpawnOptions{Sides: 6})
	if err != nil {
		t.Fatalf("spawn c: %v", err)
	}

	if a.ID != 1 || b.ID != 10 || c.ID != 11 {
		t.Fatalf("unexpected ids %d %d %d", a.ID, b.ID, c.ID)
	}
	if _, err := s.Spawn(KindBox, 0, 0, SpawnOptions{ID: 10}); !errors.Is(err, ErrBodyExists) {
		t.Fatalf("expected ErrBodyExists, got %v", err)
	}
	if _, err := s.Spawn(Kind("blob"), 0, 0, SpawnOptions{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestSpawnGeometry(t *testing.T) {
	s := newTestStore()

	cases := []struct {
		name      string
		kind      Kind
		opts      SpawnOptions
		wantVerts int
		radius    float64
	}{
		{name: "box", kind: KindBox, opts: SpawnOptions{Width: 40, Height: 20}, wantVerts: 4},
		{name: "circle", kind: KindCircle, opts: SpawnOptions{Radius: 25}, wantVerts: circleSegments, radius: 25},
		{name: "polygon", kind: KindPolygon, opts: SpawnOptions{Sides: 7}, wantVerts: 7},
		{name: "explicit vertices", kind: KindPolygon, opts: SpawnOptions{Vertices: []cp.Vector{{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 0, Y: 30}}}, wantVerts: 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := s.Spawn(tc.kind, 50, 50, tc.opts)
			if err != nil {
				t.Fatalf("spawn: %v", err)
			}
			if got := len(b.Vertices()); got != tc.wantVerts {
				t.Fatalf("expected %d vertices, got %d", tc.wantVerts, got)
			}
			if b.Radius() != tc.radius {
				t.Fatalf("expected radius %v, got %v", tc.radius, b.Radius())
			}
			if b.Mass() <= 0 || math.IsInf(b.Mass(), 0) {
				t.Fatalf("expected finite mass, got %v", b.Mass())
			}
		})
	}

	if _, err := s.Spawn(KindPolygon, 0, 0, SpawnOptions{Vertices: []cp.Vector{{X: 0, Y: 0}, {X: 1, Y: 1}}}); !errors.Is(err, ErrBadGeometry) {
		t.Fatalf("expected ErrBadGeometry, got %v", err)
	}
}

func TestSpawnUsesDensityForMass(t *testing.T) {
	s := newTestStore()
	b, err := s.Spawn(KindBox, 0, 0, SpawnOptions{Width: 50, Height: 20, Material: &Material{Density: 0.01}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if got := b.Mass(); math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected mass 10, got %v", got)
	}
}

func TestBoundariesExcludedFromListing(t *testing.T) {
	s := newTestStore()
	s.SetBoundaries(800, 600, 40)
	if _, err := s.Spawn(KindBox, 100, 100, SpawnOptions{}); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if got := len(s.Bodies()); got != 1 {
		t.Fatalf("expected 1 listed body, got %d", got)
	}
	walls := s.Walls()
	if len(walls) != 4 {
		t.Fatalf("expected 4 walls, got %d", len(walls))
	}
	for _, w := range walls {
		if w.ID >= 0 || !w.Boundary() || !w.IsStatic() {
			t.Fatalf("bad wall %+v", w.ID)
		}
	}

	s.ClearBodies()
	if len(s.Bodies()) != 0 || len(s.Walls()) != 4 {
		t.Fatalf("ClearBodies must keep walls only")
	}
}

func TestRemoveDropsAttachedConstraints(t *testing.T) {
	s := newTestStore()
	a, _ := s.Spawn(KindBox, 100, 100, SpawnOptions{})
	b, _ := s.Spawn(KindBox, 200, 100, SpawnOptions{})
	c, _ := s.Spawn(KindBox, 300, 100, SpawnOptions{})

	if _, err := s.AddConstraint(ConstraintSpec{Kind: ConstraintSpring, BodyA: a.ID, BodyB: b.ID}); err != nil {
		t.Fatalf("spring: %v", err)
	}
	if _, err := s.AddConstraint(ConstraintSpec{Kind: ConstraintRod, BodyA: b.ID, BodyB: c.ID}); err != nil {
		t.Fatalf("rod: %v", err)
	}
	if _, err := s.AddConstraint(ConstraintSpec{Kind: ConstraintPin, BodyA: c.ID, PointB: cp.Vector{X: 300, Y: 50}}); err != nil {
		t.Fatalf("pin: %v", err)
	}

	if !s.Remove(b.ID) {
		t.Fatalf("remove failed")
	}
	got := s.Constraints()
	if len(got) != 1 || got[0].Kind != ConstraintPin {
		t.Fatalf("expected only the pin to survive, got %d", len(got))
	}
	if s.Remove(b.ID) {
		t.Fatalf("second remove must report false")
	}
}

func TestAddConstraintValidation(t *testing.T) {
	s := newTestStore()
	a, _ := s.Spawn(KindBox, 100, 100, SpawnOptions{})

	cases := []struct {
		name string
		spec ConstraintSpec
		want error
	}{
		{name: "no bodies", spec: ConstraintSpec{Kind: ConstraintSpring}, want: ErrBadConstraint},
		{name: "self", spec: ConstraintSpec{Kind: ConstraintRod, BodyA: a.ID, BodyB: a.ID}, want: ErrBadConstraint},
		{name: "missing body", spec: ConstraintSpec{Kind: ConstraintRod, BodyA: a.ID, BodyB: 99}, want: ErrUnknownBody},
		{name: "unknown kind", spec: ConstraintSpec{Kind: "rope", BodyA: a.ID}, want: ErrBadConstraint},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.AddConstraint(tc.spec); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRodKeepsLength(t *testing.T) {
	s := NewStore(Options{Gravity: cp.Vector{Y: 980}})
	bob, _ := s.Spawn(KindCircle, 400, 300, SpawnOptions{Radius: 10})
	rod, err := s.AddConstraint(ConstraintSpec{Kind: ConstraintRod, BodyA: bob.ID, PointB: cp.Vector{X: 300, Y: 300}})
	if err != nil {
		t.Fatalf("rod: %v", err)
	}
	if math.Abs(rod.Length-100) > 1e-9 {
		t.Fatalf("expected rest length 100, got %v", rod.Length)
	}

	for i := 0; i < 480; i++ {
		s.Step(subDt)
	}
	d := bob.Position().Sub(cp.Vector{X: 300, Y: 300}).Length()
	if math.Abs(d-100) > 2 {
		t.Fatalf("rod stretched to %v", d)
	}
}

func TestCollisionListenerReportsFloorContact(t *testing.T) {
	s := newTestStore()
	floor, _ := s.Spawn(KindBox, 400, 600, SpawnOptions{Width: 800, Height: 40, Static: true})
	box, _ := s.Spawn(KindBox, 400, 500, SpawnOptions{Width: 40, Height: 40})

	var got []CollisionPair
	s.SetCollisionListener(func(pairs []CollisionPair) {
		got = append(got, pairs...)
	})

	for i := 0; i < 1000 && len(got) == 0; i++ {
		s.Step(subDt)
	}
	if len(got) == 0 {
		t.Fatalf("expected a contact")
	}
	pair := got[0]
	if _, ok := pair.Other(box.ID); !ok {
		t.Fatalf("pair %+v does not involve the box", pair)
	}
	if other, _ := pair.Other(box.ID); other != floor.ID {
		t.Fatalf("expected partner %d, got %d", floor.ID, other)
	}
	if pair.Horizontal() {
		t.Fatalf("floor contact classified horizontal: %+v", pair.Normal)
	}
}

func TestRemoveDuringStepIsDeferred(t *testing.T) {
	s := newTestStore()
	s.Spawn(KindBox, 400, 600, SpawnOptions{Width: 800, Height: 40, Static: true})
	box, _ := s.Spawn(KindBox, 400, 500, SpawnOptions{Width: 40, Height: 40})

	var spawned *Body
	s.SetCollisionListener(func(pairs []CollisionPair) {
		for _, p := range pairs {
			if p.A == box.ID || p.B == box.ID {
				s.Remove(box.ID)
				spawned, _ = s.Spawn(KindCircle, 100, 100, SpawnOptions{})
			}
		}
	})

	for i := 0; i < 1000 && !box.Removed(); i++ {
		s.Step(subDt)
	}
	if !box.Removed() {
		t.Fatalf("box never removed")
	}
	if s.Space().ContainsBody(box.body) {
		t.Fatalf("box still in space after step")
	}
	if spawned == nil || !s.Space().ContainsBody(spawned.body) {
		t.Fatalf("spawned body not attached after step")
	}
}

func TestSideContactIsHorizontal(t *testing.T) {
	s := NewStore(Options{})
	s.Spawn(KindBox, 600, 300, SpawnOptions{Width: 40, Height: 400, Static: true})
	box, _ := s.Spawn(KindBox, 500, 300, SpawnOptions{Width: 40, Height: 40, Velocity: cp.Vector{X: 300}, Material: &Material{Density: 0.001}})

	var got []CollisionPair
	s.SetCollisionListener(func(pairs []CollisionPair) { got = append(got, pairs...) })
	for i := 0; i < 1000 && len(got) == 0; i++ {
		s.Step(subDt)
	}
	if len(got) == 0 {
		t.Fatalf("expected a contact")
	}
	if _, ok := got[0].Other(box.ID); !ok || !got[0].Horizontal() {
		t.Fatalf("expected horizontal contact for box, got %+v", got[0])
	}
}

func TestAirFrictionSlowsBody(t *testing.T) {
	s := NewStore(Options{})
	still, _ := s.Spawn(KindBox, 0, 0, SpawnOptions{Velocity: cp.Vector{X: 100}, Material: &Material{Density: 0.001}})
	damped, _ := s.Spawn(KindBox, 0, 200, SpawnOptions{Velocity: cp.Vector{X: 100}, Material: &Material{Density: 0.001, AirFriction: 0.05}})

	for i := 0; i < 60; i++ {
		s.Step(1.0 / 60.0)
	}
	if math.Abs(still.Velocity().X-100) > 1e-9 {
		t.Fatalf("frictionless body slowed to %v", still.Velocity().X)
	}
	want := 100 * math.Pow(0.95, 60)
	if math.Abs(damped.Velocity().X-want) > 1e-6 {
		t.Fatalf("expected %v, got %v", want, damped.Velocity().X)
	}
}

func TestStaticBodyIgnoresVelocity(t *testing.T) {
	s := newTestStore()
	b, _ := s.Spawn(KindBox, 0, 0, SpawnOptions{Static: true})
	b.SetVelocity(cp.Vector{X: 10})
	b.ApplyForce(cp.Vector{X: 10})
	if b.Velocity() != (cp.Vector{}) {
		t.Fatalf("static body took velocity %v", b.Velocity())
	}

	s.SetStatic(b, false)
	if b.IsStatic() {
		t.Fatalf("expected dynamic body")
	}
	if b.Mass() <= 0 || math.IsInf(b.Mass(), 0) {
		t.Fatalf("expected finite mass after SetStatic(false), got %v", b.Mass())
	}
}

func TestPresetKeepsKeyAfterEdit(t *testing.T) {
	s := newTestStore()
	b, _ := s.Spawn(KindBox, 0, 0, SpawnOptions{MaterialKey: "rubber"})
	if b.MaterialKey != "RUBBER" || b.Material().Restitution != 0.8 {
		t.Fatalf("preset not applied: %q %+v", b.MaterialKey, b.Material())
	}

	m := b.Material()
	m.Restitution = 0.3
	b.SetMaterial(m)
	if b.MaterialKey != "RUBBER" {
		t.Fatalf("editing a field must keep the preset key")
	}
	if !b.ApplyPreset("METAL") || b.MaterialKey != "METAL" {
		t.Fatalf("ApplyPreset failed")
	}
}

func TestGrabAndDrag(t *testing.T) {
	s := NewStore(Options{})
	b, _ := s.Spawn(KindBox, 100, 100, SpawnOptions{Width: 40, Height: 40})

	if _, ok := s.Grab(cp.Vector{X: 500, Y: 500}); ok {
		t.Fatalf("grab on empty space must fail")
	}
	held, ok := s.Grab(cp.Vector{X: 100, Y: 100})
	if !ok || held != b {
		t.Fatalf("expected to grab the box")
	}
	for i := 0; i < 120; i++ {
		s.Drag(cp.Vector{X: 200, Y: 100})
		s.Step(1.0 / 60.0)
	}
	if b.Position().X < 150 {
		t.Fatalf("dragged body did not follow, x=%v", b.Position().X)
	}
	if len(s.Constraints()) != 0 {
		t.Fatalf("drag joint must not be listed")
	}
	s.Release()
	if _, ok := s.Dragging(); ok {
		t.Fatalf("expected release")
	}
}
