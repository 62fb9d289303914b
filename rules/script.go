package rules

import (
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/physics"
)

// Script is a tengo snippet compiled once when its rule is saved. At run
// time it sees the acting body as the global `body`.
type Script struct {
	Source   string
	compiled *tengo.Compiled
}

func CompileScript(src string) (*Script, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("rules: empty script")
	}

	script := tengo.NewScript([]byte(src))
	if err := script.Add("body", map[string]any{}); err != nil {
		return nil, fmt.Errorf("rules: script globals: %w", err)
	}
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("rules: compile script: %w", err)
	}
	return &Script{Source: src, compiled: compiled}, nil
}

func (s *Script) Run(b *physics.Body, color func(string)) error {
	if s == nil || s.compiled == nil {
		return fmt.Errorf("rules: nil script")
	}
	if err := s.compiled.Set("body", scriptBody(b, color)); err != nil {
		return err
	}
	return s.compiled.Run()
}

func scriptBody(b *physics.Body, color func(string)) *tengo.ImmutableMap {
	values := map[string]tengo.Object{}

	values["id"] = &tengo.Int{Value: int64(b.ID)}

	values["position"] = &tengo.UserFunction{Name: "position", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return vectorObject(b.Position()), nil
	}}

	values["velocity"] = &tengo.UserFunction{Name: "velocity", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return vectorObject(b.Velocity()), nil
	}}

	values["set_velocity"] = &tengo.UserFunction{Name: "set_velocity", Value: func(args ...tengo.Object) (tengo.Object, error) {
		v, ok := vectorArgs(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		b.SetVelocity(v)
		return tengo.TrueValue, nil
	}}

	values["apply_force"] = &tengo.UserFunction{Name: "apply_force", Value: func(args ...tengo.Object) (tengo.Object, error) {
		v, ok := vectorArgs(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		b.ApplyForce(v)
		return tengo.TrueValue, nil
	}}

	values["get_var"] = &tengo.UserFunction{Name: "get_var", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 {
			return &tengo.Float{Value: 0}, nil
		}
		name, _ := tengo.ToString(args[0])
		return &tengo.Float{Value: b.Vars.Get(name)}, nil
	}}

	values["set_var"] = &tengo.UserFunction{Name: "set_var", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 2 {
			return tengo.FalseValue, nil
		}
		name, _ := tengo.ToString(args[0])
		v, ok := tengo.ToFloat64(args[1])
		if name == "" || !ok || physics.IsReserved(name) {
			return tengo.FalseValue, nil
		}
		b.Vars.Set(name, v)
		return tengo.TrueValue, nil
	}}

	values["set_color"] = &tengo.UserFunction{Name: "set_color", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 1 || color == nil {
			return tengo.FalseValue, nil
		}
		s, _ := tengo.ToString(args[0])
		c, err := NormalizeColor(s)
		if err != nil {
			return tengo.FalseValue, nil
		}
		color(c)
		return tengo.TrueValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}

func vectorObject(v cp.Vector) tengo.Object {
	return &tengo.Array{Value: []tengo.Object{&tengo.Float{Value: v.X}, &tengo.Float{Value: v.Y}}}
}

func vectorArgs(args []tengo.Object) (cp.Vector, bool) {
	if len(args) < 2 {
		return cp.Vector{}, false
	}
	x, okX := tengo.ToFloat64(args[0])
	y, okY := tengo.ToFloat64(args[1])
	if !okX || !okY {
		return cp.Vector{}, false
	}
	return cp.Vector{X: x, Y: y}, true
}
