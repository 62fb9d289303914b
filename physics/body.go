package physics

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/common"
)

type BodyID int

type Kind string

const (
	KindBox     Kind = "box"
	KindCircle  Kind = "circle"
	KindPolygon Kind = "polygon"
	KindWall    Kind = "wall"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBox, KindCircle, KindPolygon, KindWall:
		return true
	}
	return false
}

const DefaultColor = "#95a5a6"

// SpawnOptions configures a new body. Zero values fall back to defaults.
type SpawnOptions struct {
	ID              BodyID      `json:"id,omitempty" yaml:"id,omitempty"`
	Width           float64     `json:"width,omitempty" yaml:"width,omitempty"`
	Height          float64     `json:"height,omitempty" yaml:"height,omitempty"`
	Radius          float64     `json:"radius,omitempty" yaml:"radius,omitempty"`
	Sides           int         `json:"sides,omitempty" yaml:"sides,omitempty"`
	Vertices        []cp.Vector `json:"vertices,omitempty" yaml:"vertices,omitempty"`
	Angle           float64     `json:"angle,omitempty" yaml:"angle,omitempty"`
	Velocity        cp.Vector   `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	AngularVelocity float64     `json:"angularVelocity,omitempty" yaml:"angular_velocity,omitempty"`
	Static          bool        `json:"isStatic,omitempty" yaml:"static,omitempty"`
	Color           string      `json:"color,omitempty" yaml:"color,omitempty"`
	Label           string      `json:"label,omitempty" yaml:"label,omitempty"`
	Material        *Material   `json:"material,omitempty" yaml:"material,omitempty"`
	MaterialKey     string      `json:"materialKey,omitempty" yaml:"material_key,omitempty"`
	Acceleration    cp.Vector   `json:"acceleration,omitempty" yaml:"acceleration,omitempty"`
	Vars            Vars        `json:"vars,omitempty" yaml:"vars,omitempty"`
}

// Body is a rigid shape in the store. Solver-backed state is read through
// methods; the exported fields are plain scripting and display state.
type Body struct {
	ID           BodyID
	Kind         Kind
	Label        string
	Color        string
	MaterialKey  string
	Acceleration cp.Vector
	Vars         Vars

	boundary bool
	removed  bool
	radius   float64
	verts    []cp.Vector
	material Material

	body  *cp.Body
	shape *cp.Shape
	store *Store
}

func (b *Body) Position() cp.Vector {
	return b.body.Position()
}

func (b *Body) SetPosition(p cp.Vector) {
	if b.IsStatic() && b.store != nil && b.shape.Space() != nil {
		b.store.whenUnlocked(func() {
			b.store.space.RemoveShape(b.shape)
			b.body.SetPosition(p)
			b.store.space.AddShape(b.shape)
		})
		return
	}
	b.body.SetPosition(p)
}

func (b *Body) Angle() float64 {
	return b.body.Angle()
}

func (b *Body) SetAngle(a float64) {
	b.body.SetAngle(a)
}

func (b *Body) Velocity() cp.Vector {
	return b.body.Velocity()
}

// SetVelocity is ignored for static bodies.
func (b *Body) SetVelocity(v cp.Vector) {
	if b.IsStatic() {
		return
	}
	b.body.SetVelocityVector(v)
}

func (b *Body) AngularVelocity() float64 {
	return b.body.AngularVelocity()
}

func (b *Body) SetAngularVelocity(w float64) {
	if b.IsStatic() {
		return
	}
	b.body.SetAngularVelocity(w)
}

// ApplyForce adds f at the body's center for the next solver step.
func (b *Body) ApplyForce(f cp.Vector) {
	if b.IsStatic() {
		return
	}
	b.body.ApplyForceAtWorldPoint(f, b.body.Position())
}

func (b *Body) Force() cp.Vector {
	return b.body.Force()
}

func (b *Body) Mass() float64 {
	if b.IsStatic() {
		return math.Inf(1)
	}
	return b.body.Mass()
}

func (b *Body) IsStatic() bool {
	return b.body.GetType() == cp.BODY_STATIC
}

// Boundary reports whether the body is one of the store's boundary walls.
func (b *Body) Boundary() bool {
	return b.boundary
}

func (b *Body) Removed() bool {
	return b.removed
}

// Radius is the analytic radius of a circle body and 0 otherwise.
func (b *Body) Radius() float64 {
	return b.radius
}

// Vertices returns the body-local, unrotated outline.
func (b *Body) Vertices() []cp.Vector {
	return copyVertices(b.verts)
}

// WorldVertices returns the outline transformed by the body's pose.
func (b *Body) WorldVertices() []cp.Vector {
	out := make([]cp.Vector, len(b.verts))
	for i, v := range b.verts {
		out[i] = b.body.LocalToWorld(v)
	}
	return out
}

func (b *Body) Material() Material {
	return b.material
}

// SetMaterial updates the solver shape. MaterialKey is left untouched.
func (b *Body) SetMaterial(m Material) {
	m = sanitizeMaterial(m)
	b.material = m
	b.shape.SetElasticity(m.Restitution)
	b.shape.SetFriction(m.Friction)
	if m.Density != b.shape.Density() {
		b.shape.SetDensity(m.Density)
	}
}

// ApplyPreset copies a preset onto the body and records its key.
func (b *Body) ApplyPreset(key string) bool {
	p, ok := LookupPreset(key)
	if !ok {
		return false
	}
	b.SetMaterial(p.Apply(b.material))
	b.MaterialKey = p.Key
	b.Color = p.Color
	return true
}

func (b *Body) updateVelocity(body *cp.Body, gravity cp.Vector, damping, dt float64) {
	if af := b.material.AirFriction; af > 0 {
		damping *= math.Pow(1-af, dt*60)
	}
	cp.BodyUpdateVelocity(body, gravity, damping, dt)
}

func sanitizeMaterial(m Material) Material {
	if m.Density <= 0 {
		m.Density = DefaultMaterial.Density
	}
	if m.Friction < 0 {
		m.Friction = 0
	}
	if m.Restitution < 0 {
		m.Restitution = 0
	}
	m.AirFriction = common.Clamp(m.AirFriction, 0, 0.99)
	return m
}
