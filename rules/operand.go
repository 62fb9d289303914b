package rules

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/physics"
)

// errBadOperand marks an action whose operand cannot be used. Such actions
// are dropped when the rule is saved instead of failing the rule.
var errBadOperand = errors.New("rules: unusable operand")

// Operand is a number fixed at save time or read from a body variable
// when the action runs.
type Operand struct {
	Value float64
	Var   string
}

func Literal(v float64) Operand {
	return Operand{Value: v}
}

func FromVar(name string) Operand {
	return Operand{Var: name}
}

func (o Operand) Resolve(b *physics.Body) float64 {
	if o.Var != "" {
		return b.Vars.Get(o.Var)
	}
	return o.Value
}

type VecOperand struct {
	X Operand
	Y Operand
}

func (v VecOperand) Resolve(b *physics.Body) cp.Vector {
	return cp.Vector{X: v.X.Resolve(b), Y: v.Y.Resolve(b)}
}

// parseScalar reads a single operand. With useVar the value names the
// source variable, falling back to VariableName.
func parseScalar(spec ActionSpec) (Operand, error) {
	if spec.UseVariableValue {
		name := strings.TrimSpace(valueString(spec.Value))
		if name == "" {
			name = strings.TrimSpace(spec.VariableName)
		}
		if name == "" || strings.Contains(name, ",") {
			return Operand{}, fmt.Errorf("%w: variable operand %q", errBadOperand, name)
		}
		return FromVar(name), nil
	}

	f, err := toFloat(spec.Value)
	if err != nil {
		return Operand{}, err
	}
	return Literal(f), nil
}

// parseVector reads an "x,y" operand. A single number is accepted when
// scalarOK is set and applies to both components.
func parseVector(spec ActionSpec, scalarOK bool) (VecOperand, error) {
	if spec.UseVariableValue {
		raw := strings.TrimSpace(valueString(spec.Value))
		if raw == "" {
			raw = strings.TrimSpace(spec.VariableName)
		}
		parts := strings.Split(raw, ",")
		switch {
		case len(parts) == 2 && strings.TrimSpace(parts[0]) != "" && strings.TrimSpace(parts[1]) != "":
			return VecOperand{X: FromVar(strings.TrimSpace(parts[0])), Y: FromVar(strings.TrimSpace(parts[1]))}, nil
		case len(parts) == 1 && raw != "" && scalarOK:
			return VecOperand{X: FromVar(raw), Y: FromVar(raw)}, nil
		}
		return VecOperand{}, fmt.Errorf("%w: variable pair %q", errBadOperand, raw)
	}

	if s, ok := spec.Value.(string); ok && strings.Contains(s, ",") {
		x, y, err := ParsePair(s)
		if err != nil {
			return VecOperand{}, err
		}
		return VecOperand{X: Literal(x), Y: Literal(y)}, nil
	}
	if !scalarOK {
		return VecOperand{}, fmt.Errorf("%w: expected x,y pair, got %v", errBadOperand, spec.Value)
	}
	f, err := toFloat(spec.Value)
	if err != nil {
		return VecOperand{}, err
	}
	return VecOperand{X: Literal(f), Y: Literal(f)}, nil
}

// ParsePair parses "x,y" into two numbers.
func ParsePair(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: pair %q", errBadOperand, s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || !finite(x) {
		return 0, 0, fmt.Errorf("%w: pair %q", errBadOperand, s)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || !finite(y) {
		return 0, 0, fmt.Errorf("%w: pair %q", errBadOperand, s)
	}
	return x, y, nil
}

// toFloat accepts numbers and numeric strings. NaN and infinities are
// rejected so a bad literal never reaches the solver.
func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errBadOperand, n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %v", errBadOperand, v)
	}
	if !finite(f) {
		return 0, fmt.Errorf("%w: %v is not finite", errBadOperand, v)
	}
	return f, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func valueString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}
