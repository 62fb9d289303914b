package rules

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/physics"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownRule      = errors.New("rules: unknown rule")
	ErrUnknownTrigger   = errors.New("rules: unknown trigger")
	ErrUnknownAction    = errors.New("rules: unknown action type")
	ErrInvalidCondition = errors.New("rules: invalid condition")
	ErrRuleExists       = errors.New("rules: rule id already in use")
)

type selector int

const (
	selectPositionX selector = iota
	selectPositionY
	selectVelocityX
	selectVelocityY
	selectVariable
)

type condition struct {
	sel      selector
	variable string
	op       string
	value    float64
}

func (c *condition) eval(b *physics.Body) bool {
	if c == nil {
		return true
	}

	var v float64
	switch c.sel {
	case selectPositionX:
		v = b.Position().X
	case selectPositionY:
		v = b.Position().Y
	case selectVelocityX:
		v = b.Velocity().X
	case selectVelocityY:
		v = b.Velocity().Y
	case selectVariable:
		v = b.Vars.Get(c.variable)
	}

	switch c.op {
	case ">":
		return v > c.value
	case "<":
		return v < c.value
	case ">=":
		return v >= c.value
	case "<=":
		return v <= c.value
	case "==":
		return math.Abs(v-c.value) < 1e-9
	}
	return false
}

// Rule is a compiled Spec plus its per-target pulse latch.
type Rule struct {
	ID RuleID

	spec            Spec
	trigger         TriggerKind
	mode            Mode
	cond            *condition
	key             string
	collisionTarget *physics.BodyID
	targets         []physics.BodyID
	actions         []Action
	elseActions     []Action
	enabled         bool

	lastConditionMet map[physics.BodyID]bool
}

// Compile validates spec and parses every operand once. Unknown trigger,
// mode, condition or action types fail; actions with unusable operands are
// dropped with a log line.
func Compile(spec Spec) (*Rule, error) {
	r := &Rule{
		ID:               spec.ID,
		trigger:          TriggerKind(strings.TrimSpace(string(spec.Trigger))),
		mode:             spec.Mode,
		key:              NormalizeKey(spec.Key),
		collisionTarget:  spec.CollisionTarget,
		targets:          append([]physics.BodyID(nil), spec.Targets...),
		enabled:          spec.enabled(),
		lastConditionMet: make(map[physics.BodyID]bool),
	}

	switch r.trigger {
	case TriggerContinuous, TriggerCollision, TriggerCollisionHorizontal, TriggerCollisionVertical, TriggerKeyHeld:
	default:
		return nil, fmt.Errorf("rules: trigger %q: %w", spec.Trigger, ErrUnknownTrigger)
	}
	if r.trigger == TriggerKeyHeld && r.key == "" {
		return nil, fmt.Errorf("rules: key_held trigger without key: %w", ErrUnknownTrigger)
	}

	switch r.mode {
	case "":
		r.mode = ModeContinuous
	case ModeContinuous, ModePulse:
	default:
		return nil, fmt.Errorf("rules: mode %q: %w", spec.Mode, ErrInvalidCondition)
	}

	if spec.Condition != nil && !r.trigger.collision() {
		cond, err := compileCondition(*spec.Condition)
		if err != nil {
			return nil, err
		}
		r.cond = cond
	}

	var err error
	if r.actions, err = compileActions(spec.Actions); err != nil {
		return nil, err
	}
	if r.elseActions, err = compileActions(spec.ElseActions); err != nil {
		return nil, err
	}

	for _, id := range spec.Latched {
		if r.hasTarget(id) {
			r.lastConditionMet[id] = true
		}
	}

	r.spec = spec
	r.spec.Trigger = r.trigger
	r.spec.Mode = r.mode
	r.spec.Latched = nil
	return r, nil
}

func compileCondition(spec ConditionSpec) (*condition, error) {
	c := &condition{op: strings.TrimSpace(spec.Operator), value: spec.Value}

	switch strings.ToLower(strings.TrimSpace(spec.Property)) {
	case "position.x":
		c.sel = selectPositionX
	case "position.y":
		c.sel = selectPositionY
	case "velocity.x":
		c.sel = selectVelocityX
	case "velocity.y":
		c.sel = selectVelocityY
	case "variable":
		c.sel = selectVariable
		c.variable = strings.TrimSpace(spec.Variable)
		if c.variable == "" {
			return nil, fmt.Errorf("rules: variable condition without name: %w", ErrInvalidCondition)
		}
	default:
		return nil, fmt.Errorf("rules: condition property %q: %w", spec.Property, ErrInvalidCondition)
	}

	switch c.op {
	case ">", "<", ">=", "<=", "==":
	default:
		return nil, fmt.Errorf("rules: condition operator %q: %w", spec.Operator, ErrInvalidCondition)
	}
	return c, nil
}

func compileActions(specs []ActionSpec) ([]Action, error) {
	out := make([]Action, 0, len(specs))
	for i, spec := range specs {
		a, err := compileAction(spec)
		if errors.Is(err, errBadOperand) {
			logger.Log.WithFields(logrus.Fields{
				"action": spec.Type,
				"index":  i,
			}).WithError(err).Debug("rules: dropping action with unusable operand")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Spec returns the authoring form, including the current enabled flag.
func (r *Rule) Spec() Spec {
	out := r.spec
	out.ID = r.ID
	out.Targets = append([]physics.BodyID(nil), r.targets...)
	out.Enabled = boolPtr(r.enabled)
	for _, id := range r.targets {
		if r.lastConditionMet[id] {
			out.Latched = append(out.Latched, id)
		}
	}
	return out
}

func (r *Rule) Trigger() TriggerKind       { return r.trigger }
func (r *Rule) Mode() Mode                 { return r.mode }
func (r *Rule) Enabled() bool              { return r.enabled }
func (r *Rule) Actions() []Action          { return r.actions }
func (r *Rule) ElseActions() []Action      { return r.elseActions }
func (r *Rule) Targets() []physics.BodyID  { return append([]physics.BodyID(nil), r.targets...) }
func (r *Rule) Key() string                { return r.key }
func (r *Rule) CollisionTarget() (physics.BodyID, bool) {
	if r.collisionTarget == nil {
		return 0, false
	}
	return *r.collisionTarget, true
}

func (r *Rule) hasTarget(id physics.BodyID) bool {
	for _, t := range r.targets {
		if t == id {
			return true
		}
	}
	return false
}

// NormalizeKey folds key names so "ArrowUp" and "arrowup" match. A lone
// space becomes "space".
func NormalizeKey(k string) string {
	if k == " " {
		return "space"
	}
	return strings.ToLower(strings.TrimSpace(k))
}
