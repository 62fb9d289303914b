package scene

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/physics"
	"github.com/milk9111/sandbox/world"
	"github.com/sirupsen/logrus"
)

// Serialize captures every user body, constraint and rule of w.
func Serialize(w *world.World) Document {
	store := w.Store()
	g := w.Gravity()
	ts := w.TimeScale()

	doc := Document{
		Version:     Version,
		Bodies:      []BodyDoc{},
		Constraints: []ConstraintDoc{},
		Gravity:     &Vec{X: g.X, Y: g.Y},
		TimeScale:   &ts,
	}

	for _, b := range w.Bodies() {
		doc.Bodies = append(doc.Bodies, bodyDoc(b))
	}

	for _, c := range store.Constraints() {
		pa, pb := store.Offsets(c)
		cd := ConstraintDoc{
			Type:      c.Kind,
			PointA:    vec(pa),
			PointB:    vec(pb),
			Stiffness: c.Stiffness,
			Damping:   c.Damping,
			Length:    c.Length,
			Render:    Render{StrokeStyle: c.Color},
		}
		if c.BodyA != 0 {
			id := c.BodyA
			cd.BodyAID = &id
		}
		if c.BodyB != 0 {
			id := c.BodyB
			cd.BodyBID = &id
		}
		doc.Constraints = append(doc.Constraints, cd)
	}

	for _, r := range w.Rules().ListRules() {
		doc.Rules = append(doc.Rules, r.Spec())
	}
	return doc
}

func bodyDoc(b *physics.Body) BodyDoc {
	m := b.Material()
	air := m.AirFriction
	bd := BodyDoc{
		ID:              b.ID,
		Type:            b.Kind,
		Label:           b.Label,
		Position:        vec(b.Position()),
		Angle:           b.Angle(),
		Velocity:        vec(b.Velocity()),
		AngularVelocity: b.AngularVelocity(),
		IsStatic:        b.IsStatic(),
		Render:          Render{FillStyle: b.Color},
		Restitution:     m.Restitution,
		Friction:        m.Friction,
		FrictionAir:     &air,
		Density:         m.Density,
		Radius:          b.Radius(),
		Plugin: Plugin{
			Acceleration: vec(b.Acceleration),
			MaterialKey:  b.MaterialKey,
		},
	}
	if len(b.Vars) > 0 {
		bd.Plugin.Vars = b.Vars.Clone()
	}
	for _, v := range b.Vertices() {
		bd.Vertices = append(bd.Vertices, vec(v))
	}
	return bd
}

// Deserialize replaces the contents of w with doc. A document that fails
// validation leaves w untouched. If rebuilding fails part way, w is put
// back the way it was.
func Deserialize(w *world.World, doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	previous := Serialize(w)
	if err := apply(w, doc); err != nil {
		if rerr := apply(w, previous); rerr != nil {
			logger.Log.WithError(rerr).Error("scene: restoring previous world failed")
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	logger.Log.WithFields(logrus.Fields{
		"bodies":      len(doc.Bodies),
		"constraints": len(w.Store().Constraints()),
		"rules":       len(w.Rules().ListRules()),
	}).Info("scene: loaded")
	return nil
}

func apply(w *world.World, doc Document) error {
	w.Clear()

	bodies := make(map[physics.BodyID]*physics.Body, len(doc.Bodies))
	for _, bd := range doc.Bodies {
		b, err := w.SpawnBody(bd.Type, bd.Position.X, bd.Position.Y, spawnOptions(bd))
		if err != nil {
			return fmt.Errorf("body %d: %w", bd.ID, err)
		}
		b.MaterialKey = bd.Plugin.MaterialKey
		bodies[b.ID] = b
	}

	// velocities go on after every body exists
	for _, bd := range doc.Bodies {
		b := bodies[bd.ID]
		b.SetVelocity(cp.Vector{X: bd.Velocity.X, Y: bd.Velocity.Y})
		b.SetAngularVelocity(bd.AngularVelocity)
	}

	for i, cd := range doc.Constraints {
		spec, ok := constraintSpec(cd, bodies)
		if !ok {
			logger.Log.WithField("constraint", i).Debug("scene: dropping constraint with missing body")
			continue
		}
		if _, err := w.AddConstraint(spec); err != nil {
			logger.Log.WithError(err).WithField("constraint", i).Debug("scene: dropping constraint")
		}
	}

	for _, spec := range doc.Rules {
		targets := spec.Targets[:0:0]
		for _, id := range spec.Targets {
			if _, ok := bodies[id]; ok {
				targets = append(targets, id)
			}
		}
		if len(targets) == 0 {
			logger.Log.WithField("rule", spec.ID).Debug("scene: dropping rule without targets")
			continue
		}
		spec.Targets = targets
		if _, err := w.AddRule(spec); err != nil {
			logger.Log.WithError(err).WithField("rule", spec.ID).Warn("scene: dropping rule")
		}
	}

	if doc.Gravity != nil {
		w.SetGravity(cp.Vector{X: doc.Gravity.X, Y: doc.Gravity.Y})
	}
	if doc.TimeScale != nil {
		w.SetTimeScale(*doc.TimeScale)
	}
	return nil
}

func spawnOptions(bd BodyDoc) physics.SpawnOptions {
	mat := physics.Material{
		Restitution: bd.Restitution,
		Friction:    bd.Friction,
		AirFriction: physics.DefaultMaterial.AirFriction,
		Density:     bd.Density,
	}
	if bd.FrictionAir != nil {
		mat.AirFriction = *bd.FrictionAir
	}

	opts := physics.SpawnOptions{
		ID:           bd.ID,
		Angle:        bd.Angle,
		Static:       bd.IsStatic,
		Color:        bd.Render.FillStyle,
		Label:        bd.Label,
		Material:     &mat,
		Acceleration: cp.Vector{X: bd.Plugin.Acceleration.X, Y: bd.Plugin.Acceleration.Y},
		Vars:         bd.Plugin.Vars.Clone(),
	}

	switch {
	case bd.Radius > 0:
		opts.Radius = bd.Radius
	case bd.Type == physics.KindCircle:
		opts.Radius = circumradius(bd.Vertices)
	default:
		for _, v := range bd.Vertices {
			opts.Vertices = append(opts.Vertices, cp.Vector{X: v.X, Y: v.Y})
		}
	}
	return opts
}

func constraintSpec(cd ConstraintDoc, bodies map[physics.BodyID]*physics.Body) (physics.ConstraintSpec, bool) {
	spec := physics.ConstraintSpec{
		Kind:      cd.Type,
		PointA:    cp.Vector{X: cd.PointA.X, Y: cd.PointA.Y},
		PointB:    cp.Vector{X: cd.PointB.X, Y: cd.PointB.Y},
		Stiffness: cd.Stiffness,
		Damping:   cd.Damping,
		Color:     cd.Render.StrokeStyle,
	}
	if cd.Type != physics.ConstraintPin {
		length := cd.Length
		spec.Length = &length
	}
	if cd.BodyAID != nil {
		if _, ok := bodies[*cd.BodyAID]; !ok {
			return spec, false
		}
		spec.BodyA = *cd.BodyAID
	}
	if cd.BodyBID != nil {
		if _, ok := bodies[*cd.BodyBID]; !ok {
			return spec, false
		}
		spec.BodyB = *cd.BodyBID
	}
	return spec, true
}

// circumradius recovers a circle's radius from its outline when the
// document predates the radius field.
func circumradius(verts []Vec) float64 {
	var r float64
	for _, v := range verts {
		r = math.Max(r, math.Hypot(v.X, v.Y))
	}
	return r
}

func vec(v cp.Vector) Vec {
	return Vec{X: v.X, Y: v.Y}
}
