package rules

import (
	"fmt"
	"math/rand"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/common"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/physics"
	"github.com/sirupsen/logrus"
)

// Host is the world the engine acts on.
type Host interface {
	Body(id physics.BodyID) (*physics.Body, bool)
	Remove(id physics.BodyID) bool
	Spawn(kind physics.Kind, x, y float64, opts physics.SpawnOptions) (*physics.Body, error)
	SetGravity(g cp.Vector)
}

// Engine stores rules and runs them against a Host.
type Engine struct {
	host   Host
	rules  map[RuleID]*Rule
	order  []RuleID
	nextID RuleID
	rng    *rand.Rand

	// bodies destroyed by actions during the current pass
	destroyed []physics.BodyID
}

func NewEngine(host Host, seed int64) *Engine {
	return &Engine{
		host:   host,
		rules:  make(map[RuleID]*Rule),
		nextID: 1,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// AddRule compiles and stores spec. A non-zero spec.ID is kept, which is
// how saved scenes restore their rules.
func (e *Engine) AddRule(spec Spec) (*Rule, error) {
	if spec.ID != 0 {
		if _, exists := e.rules[spec.ID]; exists {
			return nil, fmt.Errorf("rules: add %d: %w", spec.ID, ErrRuleExists)
		}
	}

	r, err := Compile(spec)
	if err != nil {
		return nil, err
	}
	if r.ID == 0 {
		r.ID = e.nextID
	}
	if r.ID >= e.nextID {
		e.nextID = r.ID + 1
	}

	e.rules[r.ID] = r
	e.order = append(e.order, r.ID)

	logger.Log.WithFields(logrus.Fields{
		"rule":    r.ID,
		"trigger": r.trigger,
		"targets": r.targets,
		"actions": len(r.actions),
	}).Debug("rules: added rule")
	return r, nil
}

func (e *Engine) RemoveRule(id RuleID) bool {
	if _, ok := e.rules[id]; !ok {
		return false
	}
	delete(e.rules, id)
	for i, rid := range e.order {
		if rid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// UpdateRule replaces a rule's definition, toggles it, or both. A
// replacement re-arms the pulse latch.
func (e *Engine) UpdateRule(id RuleID, patch Patch) error {
	r, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("rules: update %d: %w", id, ErrUnknownRule)
	}

	if patch.Spec != nil {
		spec := *patch.Spec
		spec.ID = id
		spec.Latched = nil
		if spec.Enabled == nil {
			spec.Enabled = boolPtr(r.enabled)
		}
		next, err := Compile(spec)
		if err != nil {
			return fmt.Errorf("rules: update %d: %w", id, err)
		}
		next.ID = id
		e.rules[id] = next
		r = next
	}
	if patch.Enabled != nil {
		r.enabled = *patch.Enabled
	}
	return nil
}

func (e *Engine) SetEnabled(id RuleID, enabled bool) error {
	return e.UpdateRule(id, Patch{Enabled: &enabled})
}

// ClearRules removes every rule, or with a target only that body's
// binding. A rule left without targets is removed.
func (e *Engine) ClearRules(target *physics.BodyID) int {
	if target == nil {
		n := len(e.rules)
		e.rules = make(map[RuleID]*Rule)
		e.order = nil
		return n
	}

	removed := 0
	for _, r := range e.ListRules() {
		if !r.hasTarget(*target) {
			continue
		}
		kept := make([]physics.BodyID, 0, len(r.targets))
		for _, t := range r.targets {
			if t != *target {
				kept = append(kept, t)
			}
		}
		r.targets = kept
		delete(r.lastConditionMet, *target)
		if len(r.targets) == 0 {
			e.RemoveRule(r.ID)
			removed++
		}
	}
	return removed
}

// ListRules returns rules in insertion order.
func (e *Engine) ListRules() []*Rule {
	out := make([]*Rule, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.rules[id])
	}
	return out
}

func (e *Engine) Rule(id RuleID) (*Rule, bool) {
	r, ok := e.rules[id]
	return r, ok
}

// Reseed restarts the palette picker.
func (e *Engine) Reseed(seed int64) {
	e.rng = rand.New(rand.NewSource(seed))
}

// EvaluateContinuous runs continuous rules, and key_held rules whose key is
// pressed, against bodies. It is called once per rendered frame.
func (e *Engine) EvaluateContinuous(bodies []*physics.Body, pressed map[string]bool) {
	defer e.unbindDestroyed()

	index := make(map[physics.BodyID]*physics.Body, len(bodies))
	for _, b := range bodies {
		index[b.ID] = b
	}

	for _, r := range e.ListRules() {
		if !r.enabled {
			continue
		}
		switch r.trigger {
		case TriggerContinuous:
		case TriggerKeyHeld:
			if !pressed[r.key] {
				clear(r.lastConditionMet)
				continue
			}
		default:
			continue
		}

		for _, id := range r.targets {
			b, ok := index[id]
			if !ok || b.Removed() {
				continue
			}
			met := r.cond.eval(b)
			prev := r.lastConditionMet[id]

			if r.mode == ModePulse {
				if met && !prev {
					e.run(r, b, r.actions)
				} else if !met && prev {
					e.run(r, b, r.elseActions)
				}
			} else if met {
				e.run(r, b, r.actions)
			} else {
				e.run(r, b, r.elseActions)
			}
			r.lastConditionMet[id] = met
		}
	}
}

// EvaluateCollisions runs collision rules for the contacts of one solver
// step. Only action lists run; collision rules have no else branch.
func (e *Engine) EvaluateCollisions(pairs []physics.CollisionPair) {
	if len(pairs) == 0 || len(e.rules) == 0 {
		return
	}
	defer e.unbindDestroyed()
	rules := e.ListRules()

	for _, pair := range pairs {
		horizontal := pair.Horizontal()
		for _, r := range rules {
			if !r.enabled || !r.trigger.collision() {
				continue
			}
			if r.trigger == TriggerCollisionHorizontal && !horizontal {
				continue
			}
			if r.trigger == TriggerCollisionVertical && horizontal {
				continue
			}

			for _, id := range r.targets {
				other, ok := pair.Other(id)
				if !ok {
					continue
				}
				if r.collisionTarget != nil && *r.collisionTarget != other {
					continue
				}
				b, ok := e.host.Body(id)
				if !ok || b.Removed() {
					continue
				}
				e.run(r, b, r.actions)
			}
		}
	}
}

// unbindDestroyed strips bodies removed by destroy_object from every rule
// once the pass that removed them has finished.
func (e *Engine) unbindDestroyed() {
	for _, id := range e.destroyed {
		e.ClearRules(&id)
	}
	e.destroyed = e.destroyed[:0]
}

func (e *Engine) run(r *Rule, b *physics.Body, actions []Action) {
	for _, a := range actions {
		if b.Removed() {
			return
		}
		if err := e.execute(b, a); err != nil {
			logger.Log.WithFields(logrus.Fields{
				"rule":   r.ID,
				"body":   b.ID,
				"action": a.Kind(),
			}).WithError(err).Warn("rules: action failed")
		}
	}
}

// execute applies one action to b.
func (e *Engine) execute(b *physics.Body, action Action) error {
	switch a := action.(type) {
	case SetColor:
		b.Color = a.Color
	case RandomColor:
		b.Color = palette[e.rng.Intn(len(palette))]
	case CycleColor:
		idx := int(b.Vars.Get(a.Key)) % len(a.Colors)
		if idx < 0 {
			idx = 0
		}
		b.Color = a.Colors[idx]
		b.Vars.Set(a.Key, float64((idx+1)%len(a.Colors)))
	case SetVelocity:
		b.SetVelocity(withAxis(b.Velocity(), a.Axis, a.Value.Resolve(b), func(_, v float64) float64 { return v }))
	case AddVelocity:
		b.SetVelocity(withAxis(b.Velocity(), a.Axis, a.Delta.Resolve(b), func(cur, d float64) float64 { return cur + d }))
	case MultiplyVelocity:
		b.SetVelocity(withAxis(b.Velocity(), a.Axis, a.Factor.Resolve(b), func(cur, f float64) float64 { return cur * f }))
	case FlipVelocity:
		b.SetVelocity(withAxis(b.Velocity(), a.Axis, cp.Vector{X: -1, Y: -1}, func(cur, f float64) float64 { return cur * f }))
	case MaintainSpeed:
		speed := a.Speed.Resolve(b)
		if speed < 0 {
			speed = -speed
		}
		b.SetVelocity(withAxis(b.Velocity(), a.Axis, cp.Vector{X: speed, Y: speed}, func(cur, s float64) float64 {
			if common.NearZero(cur) {
				return s
			}
			return common.Sign(cur) * s
		}))
	case SetAcceleration:
		b.Acceleration = withAxis(b.Acceleration, a.Axis, a.Value.Resolve(b), func(_, v float64) float64 { return v })
	case ApplyForce:
		b.ApplyForce(a.Force.Resolve(b))
	case SetGravity:
		e.host.SetGravity(a.Gravity.Resolve(b))
	case SetVariable:
		b.Vars.Set(a.Name, a.Value.Resolve(b))
	case AddVariable:
		b.Vars.Add(a.Name, a.Delta.Resolve(b))
	case MultiplyVariable:
		b.Vars.Mul(a.Name, a.Factor.Resolve(b))
	case DestroyObject:
		if e.host.Remove(b.ID) {
			e.destroyed = append(e.destroyed, b.ID)
		}
	case SpawnObject:
		opts := a.Options
		opts.Vars = opts.Vars.Clone()
		at := b.Position().Add(a.Offset)
		if _, err := e.host.Spawn(a.Object, at.X, at.Y, opts); err != nil {
			return err
		}
	case RunScript:
		return a.Script.Run(b, func(c string) { b.Color = c })
	default:
		return fmt.Errorf("rules: no executor for %T", action)
	}
	return nil
}

func withAxis(cur cp.Vector, axis Axis, v cp.Vector, f func(cur, v float64) float64) cp.Vector {
	switch axis {
	case AxisX:
		cur.X = f(cur.X, v.X)
	case AxisY:
		cur.Y = f(cur.Y, v.Y)
	default:
		cur.X = f(cur.X, v.X)
		cur.Y = f(cur.Y, v.Y)
	}
	return cur
}
