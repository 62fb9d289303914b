package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

// CollisionPair is a contact that started during a solver step. Normal
// points from A toward B.
type CollisionPair struct {
	A      BodyID
	B      BodyID
	Normal cp.Vector
}

// Horizontal reports whether the contact is dominated by the x axis.
func (p CollisionPair) Horizontal() bool {
	return math.Abs(p.Normal.X) > math.Abs(p.Normal.Y)
}

// Other returns the partner of id in the pair.
func (p CollisionPair) Other(id BodyID) (BodyID, bool) {
	switch id {
	case p.A:
		return p.B, true
	case p.B:
		return p.A, true
	}
	return 0, false
}

// SetCollisionListener registers fn to receive the contacts that began in
// each solver step. fn runs inside the step, after contacts are found and
// before velocities are solved, so velocity edits made by fn shape the
// step's response. Structural edits are applied after the step.
func (s *Store) SetCollisionListener(fn func([]CollisionPair)) {
	s.listener = fn
}

func (s *Store) setupCollisions() {
	handler := s.space.NewCollisionHandler(collisionTypeBody, collisionTypeBody)
	handler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		shapeA, shapeB := arb.Shapes()
		a, okA := shapeA.UserData.(*Body)
		b, okB := shapeB.UserData.(*Body)
		if !okA || !okB || a.removed || b.removed {
			return true
		}
		s.pending = append(s.pending, CollisionPair{A: a.ID, B: b.ID, Normal: arb.Normal()})
		return true
	}

	// The hook is a no-op joint between two bodies outside the space; only
	// its pre-solve callback matters.
	hook := cp.NewConstraint(flushHook{}, cp.NewStaticBody(), cp.NewStaticBody())
	hook.PreSolve = func(*cp.Constraint, *cp.Space) {
		s.flushCollisions()
	}
	s.space.AddConstraint(hook)
}

func (s *Store) flushCollisions() {
	if len(s.pending) == 0 {
		return
	}
	pairs := s.pending
	s.pending = nil
	if s.listener != nil {
		s.listener(pairs)
	}
}

type flushHook struct{}

func (flushHook) PreStep(float64)            {}
func (flushHook) ApplyCachedImpulse(float64) {}
func (flushHook) ApplyImpulse(float64)       {}
func (flushHook) GetImpulse() float64        { return 0 }
