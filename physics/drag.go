package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

const (
	dragMaxForce = 50000.0
	dragStrength = 0.15
)

type dragState struct {
	cursor *cp.Body
	joint  *cp.Constraint
	body   *Body
}

// Grab attaches the pointer to the dynamic body under p. The pointer joint
// lives outside the constraint list and is never serialized.
func (s *Store) Grab(p cp.Vector) (*Body, bool) {
	s.Release()
	b, ok := s.BodyAt(p)
	if !ok || b.IsStatic() {
		return nil, false
	}

	cursor := cp.NewKinematicBody()
	cursor.SetPosition(p)
	joint := cp.NewPivotJoint2(cursor, b.body, cp.Vector{}, b.body.WorldToLocal(p))
	joint.SetMaxForce(dragMaxForce)
	joint.SetErrorBias(math.Pow(1-dragStrength, 60))

	s.drag = &dragState{cursor: cursor, joint: joint, body: b}
	s.whenUnlocked(func() { s.space.AddConstraint(joint) })
	return b, true
}

// Drag moves the pointer; the grabbed body follows through the joint.
func (s *Store) Drag(p cp.Vector) {
	if s.drag == nil {
		return
	}
	s.drag.cursor.SetPosition(p)
}

func (s *Store) Release() {
	if s.drag == nil {
		return
	}
	joint := s.drag.joint
	s.drag = nil
	s.whenUnlocked(func() {
		if s.space.ContainsConstraint(joint) {
			s.space.RemoveConstraint(joint)
		}
	})
}

// Dragging returns the body held by the pointer.
func (s *Store) Dragging() (*Body, bool) {
	if s.drag == nil {
		return nil, false
	}
	return s.drag.body, true
}
