package physics

import (
	"fmt"
	"sort"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/logger"
	"github.com/sirupsen/logrus"
)

type ConstraintID int

type ConstraintKind string

const (
	ConstraintSpring ConstraintKind = "spring"
	ConstraintRod    ConstraintKind = "rod"
	ConstraintPin    ConstraintKind = "pin"
)

const (
	DefaultSpringStiffness = 120.0
	DefaultSpringDamping   = 4.0
)

// ConstraintSpec describes a link. A zero body id means the matching point
// is an absolute world position; otherwise it is an offset from that body's
// position.
type ConstraintSpec struct {
	Kind      ConstraintKind `json:"type" yaml:"type"`
	BodyA     BodyID         `json:"bodyA,omitempty" yaml:"body_a,omitempty"`
	BodyB     BodyID         `json:"bodyB,omitempty" yaml:"body_b,omitempty"`
	PointA    cp.Vector      `json:"pointA" yaml:"point_a"`
	PointB    cp.Vector      `json:"pointB" yaml:"point_b"`
	Stiffness float64        `json:"stiffness,omitempty" yaml:"stiffness,omitempty"`
	Damping   float64        `json:"damping,omitempty" yaml:"damping,omitempty"`
	Length    *float64       `json:"length,omitempty" yaml:"length,omitempty"`
	Color     string         `json:"color,omitempty" yaml:"color,omitempty"`
}

type Constraint struct {
	ID        ConstraintID
	Kind      ConstraintKind
	BodyA     BodyID
	BodyB     BodyID
	PointA    cp.Vector
	PointB    cp.Vector
	Stiffness float64
	Damping   float64
	Length    float64
	Color     string

	anchorA, anchorB cp.Vector
	c                *cp.Constraint
}

func (s *Store) AddConstraint(spec ConstraintSpec) (*Constraint, error) {
	if spec.BodyA == 0 && spec.BodyB == 0 {
		return nil, fmt.Errorf("physics: constraint without bodies: %w", ErrBadConstraint)
	}
	if spec.BodyA != 0 && spec.BodyA == spec.BodyB {
		return nil, fmt.Errorf("physics: constraint from body %d to itself: %w", spec.BodyA, ErrBadConstraint)
	}

	a, anchorA, err := s.endpoint(spec.BodyA, spec.PointA)
	if err != nil {
		return nil, err
	}
	b, anchorB, err := s.endpoint(spec.BodyB, spec.PointB)
	if err != nil {
		return nil, err
	}

	worldA := s.worldPoint(spec.BodyA, spec.PointA)
	worldB := s.worldPoint(spec.BodyB, spec.PointB)
	length := worldB.Sub(worldA).Length()
	if spec.Length != nil && *spec.Length >= 0 {
		length = *spec.Length
	}

	rec := &Constraint{
		Kind:      spec.Kind,
		BodyA:     spec.BodyA,
		BodyB:     spec.BodyB,
		PointA:    spec.PointA,
		PointB:    spec.PointB,
		Stiffness: spec.Stiffness,
		Damping:   spec.Damping,
		Length:    length,
		Color:     spec.Color,
		anchorA:   anchorA,
		anchorB:   anchorB,
	}

	switch spec.Kind {
	case ConstraintSpring:
		if rec.Stiffness <= 0 {
			rec.Stiffness = DefaultSpringStiffness
		}
		if rec.Damping <= 0 {
			rec.Damping = DefaultSpringDamping
		}
		rec.c = cp.NewDampedSpring(a, b, anchorA, anchorB, length, rec.Stiffness, rec.Damping)
	case ConstraintRod:
		rec.Stiffness = 1
		rec.c = cp.NewPinJoint(a, b, anchorA, anchorB)
		rec.c.Class.(*cp.PinJoint).Dist = length
	case ConstraintPin:
		rec.Stiffness = 1
		rec.Length = 0
		rec.c = cp.NewPivotJoint2(a, b, anchorA, anchorB)
	default:
		return nil, fmt.Errorf("physics: constraint kind %q: %w", spec.Kind, ErrBadConstraint)
	}
	if rec.Color == "" {
		rec.Color = "#bdc3c7"
	}

	rec.ID = s.nextCons
	s.nextCons++
	s.constraints[rec.ID] = rec
	s.whenUnlocked(func() {
		if _, live := s.constraints[rec.ID]; live {
			s.space.AddConstraint(rec.c)
		}
	})

	logger.Log.WithFields(logrus.Fields{
		"constraint": rec.ID,
		"kind":       rec.Kind,
		"body_a":     rec.BodyA,
		"body_b":     rec.BodyB,
	}).Debug("physics: added constraint")
	return rec, nil
}

func (s *Store) endpoint(id BodyID, point cp.Vector) (*cp.Body, cp.Vector, error) {
	if id == 0 {
		return s.space.StaticBody, point, nil
	}
	b, ok := s.bodies[id]
	if !ok {
		return nil, cp.Vector{}, fmt.Errorf("physics: constraint endpoint %d: %w", id, ErrUnknownBody)
	}
	// Offsets are relative to the body position, which is its center of
	// gravity after hull centering.
	return b.body, b.body.WorldToLocal(b.body.Position().Add(point)), nil
}

func (s *Store) worldPoint(id BodyID, point cp.Vector) cp.Vector {
	if id == 0 {
		return point
	}
	return s.bodies[id].body.Position().Add(point)
}

func (s *Store) RemoveConstraint(id ConstraintID) bool {
	rec, ok := s.constraints[id]
	if !ok {
		return false
	}
	delete(s.constraints, id)
	s.whenUnlocked(func() {
		if s.space.ContainsConstraint(rec.c) {
			s.space.RemoveConstraint(rec.c)
		}
	})
	return true
}

func (s *Store) ClearConstraints() {
	for id := range s.constraints {
		s.RemoveConstraint(id)
	}
}

func (s *Store) Constraint(id ConstraintID) (*Constraint, bool) {
	c, ok := s.constraints[id]
	return c, ok
}

// Constraints lists user constraints ordered by id. The pointer-drag joint
// is not included.
func (s *Store) Constraints() []*Constraint {
	out := make([]*Constraint, 0, len(s.constraints))
	for _, c := range s.constraints {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) constraintsFor(id BodyID) []*Constraint {
	var out []*Constraint
	for _, c := range s.Constraints() {
		if c.BodyA == id || c.BodyB == id {
			out = append(out, c)
		}
	}
	return out
}

// Offsets returns both endpoints in AddConstraint form for the bodies'
// current poses: an offset from the body position, or a world point.
func (s *Store) Offsets(c *Constraint) (cp.Vector, cp.Vector) {
	return s.offset(c.BodyA, c.anchorA), s.offset(c.BodyB, c.anchorB)
}

// WorldPoints returns the current world positions of both endpoints.
func (s *Store) WorldPoints(c *Constraint) (cp.Vector, cp.Vector) {
	return s.world(c.BodyA, c.anchorA), s.world(c.BodyB, c.anchorB)
}

func (s *Store) offset(id BodyID, anchor cp.Vector) cp.Vector {
	if id == 0 {
		return anchor
	}
	b, ok := s.bodies[id]
	if !ok {
		return anchor
	}
	return b.body.LocalToWorld(anchor).Sub(b.body.Position())
}

func (s *Store) world(id BodyID, anchor cp.Vector) cp.Vector {
	if id == 0 {
		return anchor
	}
	b, ok := s.bodies[id]
	if !ok {
		return anchor
	}
	return b.body.LocalToWorld(anchor)
}
