package physics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/logger"
	"github.com/sirupsen/logrus"
)

const collisionTypeBody cp.CollisionType = 1

var (
	ErrUnknownBody   = errors.New("physics: unknown body")
	ErrBodyExists    = errors.New("physics: body id already in use")
	ErrBadGeometry   = errors.New("physics: degenerate geometry")
	ErrUnknownKind   = errors.New("physics: unknown body kind")
	ErrBadConstraint = errors.New("physics: invalid constraint")
)

type Options struct {
	Gravity    cp.Vector
	Iterations int
}

// Store owns every body and constraint and the Chipmunk space behind them.
type Store struct {
	space *cp.Space

	bodies      map[BodyID]*Body
	constraints map[ConstraintID]*Constraint
	nextID      BodyID
	nextWallID  BodyID
	nextCons    ConstraintID

	stepping bool
	pending  []CollisionPair
	listener func([]CollisionPair)

	drag *dragState
}

func NewStore(opts Options) *Store {
	space := cp.NewSpace()
	space.Iterations = 10
	if opts.Iterations > 0 {
		space.Iterations = uint(opts.Iterations)
	}
	space.SetGravity(opts.Gravity)

	s := &Store{
		space:       space,
		bodies:      make(map[BodyID]*Body),
		constraints: make(map[ConstraintID]*Constraint),
		nextID:      1,
		nextWallID:  -1,
		nextCons:    1,
	}
	s.setupCollisions()
	return s
}

// Space returns the underlying Chipmunk space.
func (s *Store) Space() *cp.Space {
	if s == nil {
		return nil
	}
	return s.space
}

func (s *Store) Gravity() cp.Vector {
	return s.space.Gravity()
}

func (s *Store) SetGravity(g cp.Vector) {
	s.space.SetGravity(g)
}

// Spawn creates a body centered at (x, y). While a step is running the
// body is registered at once and joins the space after the step.
func (s *Store) Spawn(kind Kind, x, y float64, opts SpawnOptions) (*Body, error) {
	if s == nil {
		return nil, fmt.Errorf("physics: spawn on nil store")
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("physics: spawn %q: %w", kind, ErrUnknownKind)
	}

	id := opts.ID
	if id != 0 {
		if _, exists := s.bodies[id]; exists {
			return nil, fmt.Errorf("physics: spawn id %d: %w", id, ErrBodyExists)
		}
	}

	b, err := s.build(kind, x, y, opts)
	if err != nil {
		return nil, err
	}

	if id == 0 {
		id = s.nextID
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}
	b.ID = id
	s.bodies[id] = b
	s.whenUnlocked(func() { s.attach(b) })

	logger.Log.WithFields(logrus.Fields{"body": id, "kind": kind}).Debug("physics: spawned body")
	return b, nil
}

func (s *Store) build(kind Kind, x, y float64, opts SpawnOptions) (*Body, error) {
	mat := DefaultMaterial
	if opts.Material != nil {
		mat = *opts.Material
	}

	b := &Body{
		Kind:         kind,
		Label:        opts.Label,
		Color:        opts.Color,
		Acceleration: opts.Acceleration,
		Vars:         make(Vars),
		store:        s,
	}
	for k, v := range opts.Vars {
		b.Vars[k] = v
	}

	if opts.MaterialKey != "" {
		if p, ok := LookupPreset(opts.MaterialKey); ok {
			mat = p.Apply(mat)
			b.MaterialKey = p.Key
			if b.Color == "" {
				b.Color = p.Color
			}
		} else {
			b.MaterialKey = opts.MaterialKey
		}
	}
	if b.Color == "" {
		b.Color = DefaultColor
	}
	mat = sanitizeMaterial(mat)
	b.material = mat

	b.body = cp.NewBody(0, 0)
	offset := cp.Vector{}
	switch {
	case kind == KindCircle || (opts.Radius > 0 && len(opts.Vertices) == 0):
		r := opts.Radius
		if r <= 0 {
			r = 30
		}
		b.radius = r
		b.verts = regularPolygon(circleSegments, r)
		b.shape = cp.NewCircle(b.body, r, cp.Vector{})
	default:
		verts := opts.Vertices
		if len(verts) == 0 {
			switch kind {
			case KindPolygon:
				sides := opts.Sides
				if sides < 3 {
					sides = 5
				}
				r := opts.Radius
				if r <= 0 {
					r = 35
				}
				verts = regularPolygon(sides, r)
			case KindWall:
				verts = boxVertices(orDefault(opts.Width, 400), orDefault(opts.Height, 40))
			default:
				verts = boxVertices(orDefault(opts.Width, 60), orDefault(opts.Height, 60))
			}
		}
		local, centroid := hull(verts)
		if len(local) < 3 || polygonArea(local) == 0 {
			return nil, fmt.Errorf("physics: spawn %s with %d vertices: %w", kind, len(verts), ErrBadGeometry)
		}
		b.verts = local
		offset = centroid
		b.shape = cp.NewPolyShapeRaw(b.body, len(local), local, 0)
	}

	b.shape.UserData = b
	b.shape.SetCollisionType(collisionTypeBody)
	b.shape.SetElasticity(mat.Restitution)
	b.shape.SetFriction(mat.Friction)
	b.shape.SetDensity(mat.Density)

	b.body.UserData = b
	b.body.SetVelocityUpdateFunc(b.updateVelocity)
	if opts.Static || kind == KindWall {
		b.body.SetType(cp.BODY_STATIC)
	}
	b.body.SetPosition(cp.Vector{X: x, Y: y}.Add(offset))
	b.body.SetAngle(opts.Angle)
	if !b.IsStatic() {
		b.body.SetVelocityVector(opts.Velocity)
		b.body.SetAngularVelocity(opts.AngularVelocity)
	}
	return b, nil
}

func (s *Store) attach(b *Body) {
	if b.removed {
		return
	}
	s.space.AddBody(b.body)
	s.space.AddShape(b.shape)
}

func (s *Store) detach(b *Body) {
	if s.space.ContainsShape(b.shape) {
		s.space.RemoveShape(b.shape)
	}
	if s.space.ContainsBody(b.body) {
		s.space.RemoveBody(b.body)
	}
}

func (s *Store) Body(id BodyID) (*Body, bool) {
	if s == nil {
		return nil, false
	}
	b, ok := s.bodies[id]
	return b, ok
}

// Bodies lists non-boundary bodies ordered by id.
func (s *Store) Bodies() []*Body {
	out := make([]*Body, 0, len(s.bodies))
	for _, b := range s.bodies {
		if b.boundary {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Walls() []*Body {
	var out []*Body
	for _, b := range s.bodies {
		if b.boundary {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// NextID is the id the next auto-numbered spawn will receive.
func (s *Store) NextID() BodyID {
	return s.nextID
}

// Remove deletes a body and every constraint attached to it.
func (s *Store) Remove(id BodyID) bool {
	b, ok := s.bodies[id]
	if !ok {
		return false
	}
	for _, c := range s.constraintsFor(id) {
		s.RemoveConstraint(c.ID)
	}
	if s.drag != nil && s.drag.body == b {
		s.Release()
	}

	b.removed = true
	delete(s.bodies, id)
	s.whenUnlocked(func() { s.detach(b) })

	logger.Log.WithField("body", id).Debug("physics: removed body")
	return true
}

// ClearBodies removes everything except boundary walls.
func (s *Store) ClearBodies() {
	for _, b := range s.Bodies() {
		s.Remove(b.ID)
	}
	s.ClearConstraints()
}

// SetBoundaries replaces the four boundary walls around a width x height area.
func (s *Store) SetBoundaries(width, height, thickness float64) {
	s.ClearBoundaries()
	if width <= 0 || height <= 0 {
		return
	}
	if thickness <= 0 {
		thickness = 60
	}

	half := thickness / 2
	walls := []struct {
		x, y, w, h float64
		label      string
	}{
		{x: width / 2, y: height + half, w: width + 2*thickness, h: thickness, label: "floor"},
		{x: width / 2, y: -half, w: width + 2*thickness, h: thickness, label: "ceiling"},
		{x: -half, y: height / 2, w: thickness, h: height, label: "left"},
		{x: width + half, y: height / 2, w: thickness, h: height, label: "right"},
	}
	for _, wall := range walls {
		mat := Material{Restitution: 1, Friction: 1, Density: 1}
		b, err := s.build(KindWall, wall.x, wall.y, SpawnOptions{
			Width:    wall.w,
			Height:   wall.h,
			Static:   true,
			Label:    wall.label,
			Material: &mat,
			Color:    "#2c3e50",
		})
		if err != nil {
			logger.Log.WithError(err).Warn("physics: boundary wall")
			continue
		}
		b.boundary = true
		b.ID = s.nextWallID
		s.nextWallID--
		s.bodies[b.ID] = b
		s.whenUnlocked(func() { s.attach(b) })
	}
}

func (s *Store) ClearBoundaries() {
	for _, b := range s.Walls() {
		b.removed = true
		delete(s.bodies, b.ID)
		wall := b
		s.whenUnlocked(func() { s.detach(wall) })
	}
}

// SetStatic switches a body between static and dynamic.
func (s *Store) SetStatic(b *Body, static bool) {
	if b == nil || b.IsStatic() == static {
		return
	}
	s.whenUnlocked(func() {
		if static {
			b.body.SetType(cp.BODY_STATIC)
			return
		}
		b.body.SetType(cp.BODY_DYNAMIC)
	})
}

// BodyAt returns the body whose shape contains p.
func (s *Store) BodyAt(p cp.Vector) (*Body, bool) {
	info := s.space.PointQueryNearest(p, 0, cp.SHAPE_FILTER_ALL)
	if info == nil || info.Shape == nil {
		return nil, false
	}
	b, ok := info.Shape.UserData.(*Body)
	if !ok || b.removed {
		return nil, false
	}
	return b, true
}

// Step advances the solver by dt seconds.
func (s *Store) Step(dt float64) {
	if s == nil || dt <= 0 {
		return
	}
	s.stepping = true
	s.space.Step(dt)
	s.stepping = false
}

func (s *Store) whenUnlocked(fn func()) {
	if !s.stepping {
		fn()
		return
	}
	s.space.AddPostStepCallback(func(*cp.Space, interface{}, interface{}) {
		fn()
	}, nil, nil)
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
