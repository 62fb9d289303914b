package rules

import (
	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/physics"
)

type RuleID int

type TriggerKind string

const (
	TriggerContinuous          TriggerKind = "continuous"
	TriggerCollision           TriggerKind = "collision_start"
	TriggerCollisionHorizontal TriggerKind = "collision_horizontal"
	TriggerCollisionVertical   TriggerKind = "collision_vertical"
	TriggerKeyHeld             TriggerKind = "key_held"
)

func (t TriggerKind) collision() bool {
	switch t {
	case TriggerCollision, TriggerCollisionHorizontal, TriggerCollisionVertical:
		return true
	}
	return false
}

type Mode string

const (
	ModeContinuous Mode = "continuous"
	ModePulse      Mode = "pulse"
)

// Spec is the authoring form of a rule, as saved in scenes and templates.
type Spec struct {
	ID              RuleID           `json:"id,omitempty" yaml:"id,omitempty"`
	Name            string           `json:"name,omitempty" yaml:"name,omitempty"`
	Targets         []physics.BodyID `json:"targets" yaml:"targets"`
	Trigger         TriggerKind      `json:"trigger" yaml:"trigger"`
	Condition       *ConditionSpec   `json:"condition,omitempty" yaml:"condition,omitempty"`
	Mode            Mode             `json:"mode,omitempty" yaml:"mode,omitempty"`
	CollisionTarget *physics.BodyID  `json:"collisionTarget,omitempty" yaml:"collision_target,omitempty"`
	Key             string           `json:"key,omitempty" yaml:"key,omitempty"`
	Actions         []ActionSpec     `json:"actions" yaml:"actions"`
	ElseActions     []ActionSpec     `json:"elseActions,omitempty" yaml:"else_actions,omitempty"`
	Enabled         *bool            `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Latched lists the targets whose condition held on the last
	// evaluation, so a restored pulse rule does not fire again.
	Latched []physics.BodyID `json:"lastConditionMet,omitempty" yaml:"-"`
}

// ConditionSpec compares one body property against a threshold.
// Property is position.x, position.y, velocity.x, velocity.y or variable.
type ConditionSpec struct {
	Property string  `json:"property" yaml:"property"`
	Variable string  `json:"variable,omitempty" yaml:"variable,omitempty"`
	Operator string  `json:"operator" yaml:"operator"`
	Value    float64 `json:"value" yaml:"value"`
}

// ActionSpec is one authored action. Value is a number, an "x,y" pair, a
// color, or a variable name when UseVariableValue is set.
type ActionSpec struct {
	Type             string                `json:"type" yaml:"type"`
	Value            any                   `json:"value,omitempty" yaml:"value,omitempty"`
	VariableName     string                `json:"variableName,omitempty" yaml:"variable_name,omitempty"`
	UseVariableValue bool                  `json:"useVariableValue,omitempty" yaml:"use_variable_value,omitempty"`
	Object           physics.Kind          `json:"object,omitempty" yaml:"object,omitempty"`
	Offset           *cp.Vector            `json:"offset,omitempty" yaml:"offset,omitempty"`
	Options          *physics.SpawnOptions `json:"options,omitempty" yaml:"options,omitempty"`
	Script           string                `json:"script,omitempty" yaml:"script,omitempty"`
}

// Patch updates a stored rule: either a full replacement, an enable
// toggle, or both.
type Patch struct {
	Spec    *Spec
	Enabled *bool
}

func (s Spec) enabled() bool {
	return s.Enabled == nil || *s.Enabled
}

func boolPtr(v bool) *bool {
	return &v
}
