package rules

import (
	"fmt"
	"strings"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/physics"
)

// Action is one executable rule step. The set of implementations is closed;
// Engine.execute switches over every one of them.
type Action interface {
	Kind() string
	sealed()
}

type Axis int

const (
	AxisBoth Axis = iota
	AxisX
	AxisY
)

type SetColor struct{ Color string }
type RandomColor struct{}

// CycleColor steps through Colors, keeping its position in the body's
// reserved variable Key.
type CycleColor struct {
	Colors []string
	Key    string
}

type SetVelocity struct {
	Axis  Axis
	Value VecOperand
}

type AddVelocity struct {
	Axis  Axis
	Delta VecOperand
}

type MultiplyVelocity struct {
	Axis   Axis
	Factor VecOperand
}

type FlipVelocity struct{ Axis Axis }

// MaintainSpeed snaps one velocity component to |Speed| keeping its sign.
type MaintainSpeed struct {
	Axis  Axis
	Speed Operand
}

type SetAcceleration struct {
	Axis  Axis
	Value VecOperand
}

type ApplyForce struct{ Force VecOperand }
type SetGravity struct{ Gravity VecOperand }

type SetVariable struct {
	Name  string
	Value Operand
}

type AddVariable struct {
	Name  string
	Delta Operand
}

type MultiplyVariable struct {
	Name   string
	Factor Operand
}

type DestroyObject struct{}

type SpawnObject struct {
	Object  physics.Kind
	Offset  cp.Vector
	Options physics.SpawnOptions
}

type RunScript struct{ Script *Script }

func (SetColor) Kind() string         { return "set_color" }
func (RandomColor) Kind() string      { return "random_color" }
func (CycleColor) Kind() string       { return "cycle_color" }
func (a SetVelocity) Kind() string    { return "set_velocity" + a.Axis.suffix() }
func (a AddVelocity) Kind() string    { return "add_velocity" + a.Axis.suffix() }
func (a MultiplyVelocity) Kind() string {
	return "multiply_velocity" + a.Axis.suffix()
}
func (a FlipVelocity) Kind() string    { return "flip_velocity" + a.Axis.suffix() }
func (a MaintainSpeed) Kind() string   { return "maintain_speed" + a.Axis.suffix() }
func (a SetAcceleration) Kind() string { return "set_acceleration" + a.Axis.suffix() }
func (ApplyForce) Kind() string        { return "apply_force" }
func (SetGravity) Kind() string        { return "set_gravity" }
func (SetVariable) Kind() string       { return "set_variable" }
func (AddVariable) Kind() string       { return "add_variable" }
func (MultiplyVariable) Kind() string  { return "multiply_variable" }
func (DestroyObject) Kind() string     { return "destroy_object" }
func (SpawnObject) Kind() string       { return "spawn_object" }
func (RunScript) Kind() string         { return "run_script" }

func (SetColor) sealed()         {}
func (RandomColor) sealed()      {}
func (CycleColor) sealed()       {}
func (SetVelocity) sealed()      {}
func (AddVelocity) sealed()      {}
func (MultiplyVelocity) sealed() {}
func (FlipVelocity) sealed()     {}
func (MaintainSpeed) sealed()    {}
func (SetAcceleration) sealed()  {}
func (ApplyForce) sealed()       {}
func (SetGravity) sealed()       {}
func (SetVariable) sealed()      {}
func (AddVariable) sealed()      {}
func (MultiplyVariable) sealed() {}
func (DestroyObject) sealed()    {}
func (SpawnObject) sealed()      {}
func (RunScript) sealed()        {}

func (a Axis) suffix() string {
	switch a {
	case AxisX:
		return "_x"
	case AxisY:
		return "_y"
	}
	return ""
}

type actionBuilder func(spec ActionSpec) (Action, error)

var actionRegistry = map[string]actionBuilder{
	"set_color":           buildSetColor,
	"random_color":        func(ActionSpec) (Action, error) { return RandomColor{}, nil },
	"cycle_color":         buildCycleColor,
	"set_velocity":        vectorAction(AxisBoth, false, func(ax Axis, v VecOperand) Action { return SetVelocity{Axis: ax, Value: v} }),
	"set_velocity_x":      axisAction(AxisX, func(ax Axis, v VecOperand) Action { return SetVelocity{Axis: ax, Value: v} }),
	"set_velocity_y":      axisAction(AxisY, func(ax Axis, v VecOperand) Action { return SetVelocity{Axis: ax, Value: v} }),
	"add_velocity":        vectorAction(AxisBoth, false, func(ax Axis, v VecOperand) Action { return AddVelocity{Axis: ax, Delta: v} }),
	"add_velocity_x":      axisAction(AxisX, func(ax Axis, v VecOperand) Action { return AddVelocity{Axis: ax, Delta: v} }),
	"add_velocity_y":      axisAction(AxisY, func(ax Axis, v VecOperand) Action { return AddVelocity{Axis: ax, Delta: v} }),
	"multiply_velocity":   vectorAction(AxisBoth, true, func(ax Axis, v VecOperand) Action { return MultiplyVelocity{Axis: ax, Factor: v} }),
	"multiply_velocity_x": axisAction(AxisX, func(ax Axis, v VecOperand) Action { return MultiplyVelocity{Axis: ax, Factor: v} }),
	"multiply_velocity_y": axisAction(AxisY, func(ax Axis, v VecOperand) Action { return MultiplyVelocity{Axis: ax, Factor: v} }),
	"flip_velocity_x":     func(ActionSpec) (Action, error) { return FlipVelocity{Axis: AxisX}, nil },
	"flip_velocity_y":     func(ActionSpec) (Action, error) { return FlipVelocity{Axis: AxisY}, nil },
	"maintain_speed_x":    maintainSpeed(AxisX),
	"maintain_speed_y":    maintainSpeed(AxisY),
	"set_acceleration":    vectorAction(AxisBoth, false, func(ax Axis, v VecOperand) Action { return SetAcceleration{Axis: ax, Value: v} }),
	"set_acceleration_x":  axisAction(AxisX, func(ax Axis, v VecOperand) Action { return SetAcceleration{Axis: ax, Value: v} }),
	"set_acceleration_y":  axisAction(AxisY, func(ax Axis, v VecOperand) Action { return SetAcceleration{Axis: ax, Value: v} }),
	"apply_force":         vectorAction(AxisBoth, false, func(_ Axis, v VecOperand) Action { return ApplyForce{Force: v} }),
	"set_gravity":         vectorAction(AxisBoth, false, func(_ Axis, v VecOperand) Action { return SetGravity{Gravity: v} }),
	"set_variable":        variableAction(func(name string, o Operand) Action { return SetVariable{Name: name, Value: o} }),
	"add_variable":        variableAction(func(name string, o Operand) Action { return AddVariable{Name: name, Delta: o} }),
	"multiply_variable":   variableAction(func(name string, o Operand) Action { return MultiplyVariable{Name: name, Factor: o} }),
	"destroy_object":      func(ActionSpec) (Action, error) { return DestroyObject{}, nil },
	"spawn_object":        buildSpawnObject,
	"run_script":          buildRunScript,
}

// ActionTypes lists every accepted action type name.
func ActionTypes() []string {
	out := make([]string, 0, len(actionRegistry))
	for name := range actionRegistry {
		out = append(out, name)
	}
	return out
}

// compileAction turns an authored action into its executable form. An
// unknown type is an error; an unusable operand returns errBadOperand.
func compileAction(spec ActionSpec) (Action, error) {
	build, ok := actionRegistry[strings.TrimSpace(spec.Type)]
	if !ok {
		return nil, fmt.Errorf("rules: action %q: %w", spec.Type, ErrUnknownAction)
	}
	return build(spec)
}

func vectorAction(axis Axis, scalarOK bool, mk func(Axis, VecOperand) Action) actionBuilder {
	return func(spec ActionSpec) (Action, error) {
		v, err := parseVector(spec, scalarOK)
		if err != nil {
			return nil, err
		}
		return mk(axis, v), nil
	}
}

func axisAction(axis Axis, mk func(Axis, VecOperand) Action) actionBuilder {
	return func(spec ActionSpec) (Action, error) {
		o, err := parseScalar(spec)
		if err != nil {
			return nil, err
		}
		return mk(axis, VecOperand{X: o, Y: o}), nil
	}
}

func maintainSpeed(axis Axis) actionBuilder {
	return func(spec ActionSpec) (Action, error) {
		o, err := parseScalar(spec)
		if err != nil {
			return nil, err
		}
		return MaintainSpeed{Axis: axis, Speed: o}, nil
	}
}

func variableAction(mk func(string, Operand) Action) actionBuilder {
	return func(spec ActionSpec) (Action, error) {
		name := strings.TrimSpace(spec.VariableName)
		if name == "" || physics.IsReserved(name) {
			return nil, fmt.Errorf("%w: variable name %q", errBadOperand, name)
		}
		var (
			o   Operand
			err error
		)
		if spec.UseVariableValue {
			src := strings.TrimSpace(valueString(spec.Value))
			if src == "" {
				return nil, fmt.Errorf("%w: variable %q has no source", errBadOperand, name)
			}
			o = FromVar(src)
		} else {
			o, err = parseScalar(spec)
		}
		if err != nil {
			return nil, err
		}
		return mk(name, o), nil
	}
}

func buildSetColor(spec ActionSpec) (Action, error) {
	c, err := NormalizeColor(valueString(spec.Value))
	if err != nil {
		return nil, err
	}
	return SetColor{Color: c}, nil
}

func buildCycleColor(spec ActionSpec) (Action, error) {
	raw := strings.TrimSpace(valueString(spec.Value))
	var colors []string
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := NormalizeColor(part)
		if err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("%w: empty color cycle", errBadOperand)
	}
	return CycleColor{Colors: colors, Key: physics.CycleKey(raw)}, nil
}

func buildSpawnObject(spec ActionSpec) (Action, error) {
	kind := spec.Object
	if kind == "" {
		kind = physics.Kind(strings.TrimSpace(valueString(spec.Value)))
	}
	if kind == "" {
		kind = physics.KindBox
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: spawn object %q", errBadOperand, kind)
	}

	out := SpawnObject{Object: kind}
	if spec.Offset != nil {
		out.Offset = *spec.Offset
	}
	if spec.Options != nil {
		out.Options = *spec.Options
		out.Options.ID = 0
	}
	return out, nil
}

func buildRunScript(spec ActionSpec) (Action, error) {
	src := spec.Script
	if src == "" {
		src = valueString(spec.Value)
	}
	s, err := CompileScript(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadOperand, err)
	}
	return RunScript{Script: s}, nil
}
