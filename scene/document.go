package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/milk9111/sandbox/physics"
	"github.com/milk9111/sandbox/rules"
)

// Version is written into every saved document.
const Version = 1

var (
	ErrMalformed  = errors.New("scene: malformed document")
	ErrNotFound   = errors.New("scene: not found")
	ErrSuperseded = errors.New("scene: load superseded by a newer one")
)

type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Document is the saved form of a world. Boundary walls and the pointer
// joint are never part of it.
type Document struct {
	Version     int             `json:"version,omitempty"`
	Bodies      []BodyDoc       `json:"bodies"`
	Constraints []ConstraintDoc `json:"constraints"`
	Gravity     *Vec            `json:"gravity,omitempty"`
	Rules       []rules.Spec    `json:"rules,omitempty"`
	TimeScale   *float64        `json:"timeScale,omitempty"`
}

type BodyDoc struct {
	ID              physics.BodyID `json:"id"`
	Type            physics.Kind   `json:"type"`
	Label           string         `json:"label,omitempty"`
	Position        Vec            `json:"position"`
	Angle           float64        `json:"angle"`
	Velocity        Vec            `json:"velocity"`
	AngularVelocity float64        `json:"angularVelocity"`
	IsStatic        bool           `json:"isStatic"`
	Render          Render         `json:"render"`
	Restitution     float64        `json:"restitution"`
	Friction        float64        `json:"friction"`
	FrictionAir     *float64       `json:"frictionAir,omitempty"`
	Density         float64        `json:"density"`
	Radius          float64        `json:"radius,omitempty"`
	Vertices        []Vec          `json:"vertices"`
	Plugin          Plugin         `json:"plugin"`
}

type Render struct {
	FillStyle   string `json:"fillStyle,omitempty"`
	StrokeStyle string `json:"strokeStyle,omitempty"`
}

type Plugin struct {
	Acceleration Vec          `json:"acceleration"`
	MaterialKey  string       `json:"materialKey,omitempty"`
	Vars         physics.Vars `json:"vars,omitempty"`
}

// ConstraintDoc has a nil body id for an endpoint pinned to the world.
type ConstraintDoc struct {
	Type      physics.ConstraintKind `json:"type"`
	BodyAID   *physics.BodyID        `json:"bodyAId,omitempty"`
	BodyBID   *physics.BodyID        `json:"bodyBId,omitempty"`
	PointA    Vec                    `json:"pointA"`
	PointB    Vec                    `json:"pointB"`
	Stiffness float64                `json:"stiffness"`
	Damping   float64                `json:"damping"`
	Length    float64                `json:"length"`
	Render    Render                 `json:"render"`
}

func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("scene: encode: %w", err)
	}
	return nil
}

func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, nil
}

// Validate checks the document without touching any world.
func (d Document) Validate() error {
	seen := make(map[physics.BodyID]bool, len(d.Bodies))
	for i, b := range d.Bodies {
		if b.ID <= 0 {
			return fmt.Errorf("%w: body %d has id %d", ErrMalformed, i, b.ID)
		}
		if seen[b.ID] {
			return fmt.Errorf("%w: duplicate body id %d", ErrMalformed, b.ID)
		}
		seen[b.ID] = true

		if !b.Type.Valid() {
			return fmt.Errorf("%w: body %d has type %q", ErrMalformed, b.ID, b.Type)
		}
		if b.Radius < 0 {
			return fmt.Errorf("%w: body %d has negative radius", ErrMalformed, b.ID)
		}
		if b.Radius == 0 && len(b.Vertices) < 3 {
			return fmt.Errorf("%w: body %d has %d vertices", ErrMalformed, b.ID, len(b.Vertices))
		}
		if !finite(b.Position.X, b.Position.Y, b.Angle, b.Velocity.X, b.Velocity.Y, b.AngularVelocity, b.Density) {
			return fmt.Errorf("%w: body %d has a non-finite value", ErrMalformed, b.ID)
		}
		if b.Density < 0 {
			return fmt.Errorf("%w: body %d has negative density", ErrMalformed, b.ID)
		}
	}

	for i, c := range d.Constraints {
		switch c.Type {
		case physics.ConstraintSpring, physics.ConstraintRod, physics.ConstraintPin:
		default:
			return fmt.Errorf("%w: constraint %d has type %q", ErrMalformed, i, c.Type)
		}
		if c.BodyAID == nil && c.BodyBID == nil {
			return fmt.Errorf("%w: constraint %d links no bodies", ErrMalformed, i)
		}
	}

	if d.Gravity != nil && !finite(d.Gravity.X, d.Gravity.Y) {
		return fmt.Errorf("%w: gravity is not finite", ErrMalformed)
	}
	if d.TimeScale != nil && (*d.TimeScale < 0 || !finite(*d.TimeScale)) {
		return fmt.Errorf("%w: time scale %v", ErrMalformed, *d.TimeScale)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
