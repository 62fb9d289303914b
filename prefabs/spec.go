package prefabs

import (
	"fmt"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/physics"
	"github.com/milk9111/sandbox/rules"
	"gopkg.in/yaml.v3"
)

// Template is the YAML form of a prefab. Bodies are placed relative to the
// spawn point and referenced by their sub id.
type Template struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Bodies      []BodySpec           `yaml:"bodies"`
	Constraints []ConstraintTemplate `yaml:"constraints"`
	Rules       []RuleTemplate       `yaml:"rules"`
}

type BodySpec struct {
	SubID   string               `yaml:"sub_id"`
	Type    physics.Kind         `yaml:"type"`
	Offset  cp.Vector            `yaml:"offset"`
	Color   *YAMLColor           `yaml:"color"`
	Options physics.SpawnOptions `yaml:"options"`
}

// ConstraintTemplate links two bodies by sub id. An empty sub id makes the
// matching point relative to the spawn point instead of a body.
type ConstraintTemplate struct {
	Type      physics.ConstraintKind `yaml:"type"`
	BodyA     string                 `yaml:"body_a"`
	BodyB     string                 `yaml:"body_b"`
	PointA    cp.Vector              `yaml:"point_a"`
	PointB    cp.Vector              `yaml:"point_b"`
	Stiffness float64                `yaml:"stiffness"`
	Damping   float64                `yaml:"damping"`
	Length    *float64               `yaml:"length"`
	Color     *YAMLColor             `yaml:"color"`
}

type RuleTemplate struct {
	Name            string               `yaml:"name"`
	Targets         []string             `yaml:"targets"`
	Trigger         rules.TriggerKind    `yaml:"trigger"`
	Condition       *rules.ConditionSpec `yaml:"condition"`
	Mode            rules.Mode           `yaml:"mode"`
	CollisionTarget string               `yaml:"collision_target"`
	Key             string               `yaml:"key"`
	Actions         []ActionTemplate     `yaml:"actions"`
	ElseActions     []ActionTemplate     `yaml:"else_actions"`
	Enabled         *bool                `yaml:"enabled"`
}

// ActionTemplate is a rule action that may pull its script from a file
// under scripts/.
type ActionTemplate struct {
	rules.ActionSpec `yaml:",inline"`
	ScriptFile       string `yaml:"script_file"`
}

func LoadSpec[T any](dir, filename string) (T, error) {
	var zero T
	data, err := Load(dir, filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// YAMLColor accepts #rgb, #rrggbb or a CSS color name.
type YAMLColor struct {
	Hex string
}

func (c *YAMLColor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("color must be a string")
	}

	hex, err := rules.NormalizeColor(value.Value)
	if err != nil {
		return fmt.Errorf("invalid color format: %s", value.Value)
	}
	c.Hex = hex
	return nil
}

func (c *YAMLColor) String() string {
	if c == nil {
		return ""
	}
	return c.Hex
}
