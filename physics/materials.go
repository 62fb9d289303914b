package physics

import "strings"

// Material holds the surface and mass properties of a body.
type Material struct {
	Restitution float64 `json:"restitution" yaml:"restitution"`
	Friction    float64 `json:"friction" yaml:"friction"`
	AirFriction float64 `json:"frictionAir" yaml:"friction_air"`
	Density     float64 `json:"density" yaml:"density"`
}

// DefaultMaterial is used when a spawn names neither a material nor a preset.
var DefaultMaterial = Material{
	Restitution: 0,
	Friction:    0.1,
	AirFriction: 0.01,
	Density:     0.001,
}

type Preset struct {
	Key         string
	Density     float64
	Friction    float64
	Restitution float64
	Color       string
}

var presets = map[string]Preset{
	"WOOD":   {Key: "WOOD", Density: 0.002, Friction: 0.6, Restitution: 0.2, Color: "#a0522d"},
	"METAL":  {Key: "METAL", Density: 0.008, Friction: 0.3, Restitution: 0.1, Color: "#8a9597"},
	"RUBBER": {Key: "RUBBER", Density: 0.0015, Friction: 0.9, Restitution: 0.8, Color: "#2f2f2f"},
	"BOUNCY": {Key: "BOUNCY", Density: 0.001, Friction: 0.1, Restitution: 1.1, Color: "#ff69b4"},
	"HEAVY":  {Key: "HEAVY", Density: 0.02, Friction: 0.8, Restitution: 0, Color: "#4b4b4b"},
	"VACUUM": {Key: "VACUUM", Density: 0.001, Friction: 0, Restitution: 1, Color: "#e0f7ff"},
}

// LookupPreset finds a preset by key, ignoring case.
func LookupPreset(key string) (Preset, bool) {
	p, ok := presets[strings.ToUpper(strings.TrimSpace(key))]
	return p, ok
}

func PresetKeys() []string {
	return []string{"WOOD", "METAL", "RUBBER", "BOUNCY", "HEAVY", "VACUUM"}
}

// Apply overwrites the preset-owned fields of m. Air friction is kept.
func (p Preset) Apply(m Material) Material {
	m.Density = p.Density
	m.Friction = p.Friction
	m.Restitution = p.Restitution
	return m
}
