package prefabs

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/physics"
	"github.com/milk9111/sandbox/rules"
	"github.com/sirupsen/logrus"
)

var ErrUnknownTemplate = errors.New("prefabs: unknown template")

// Library loads templates on first use and keeps them until Reload or
// until the file under dir gets a newer modification time.
type Library struct {
	dir string

	mu    sync.Mutex
	cache map[string]cachedTemplate
}

type cachedTemplate struct {
	t   *Template
	mod time.Time
}

// NewLibrary reads templates from dir, falling back to the embedded set.
// An empty dir uses only the embedded templates.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir, cache: make(map[string]cachedTemplate)}
}

func (l *Library) Dir() string { return l.dir }

func (l *Library) Names() []string {
	return Names(l.dir)
}

func (l *Library) Template(name string) (*Template, error) {
	name = strings.TrimSpace(name)
	l.mu.Lock()
	defer l.mu.Unlock()

	mod, onDisk := ModTime(l.dir, name)
	if c, ok := l.cache[name]; ok && (!onDisk || mod.Equal(c.mod)) {
		return c.t, nil
	}

	t, err := LoadSpec[Template](l.dir, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("prefabs: template %q: %w", name, ErrUnknownTemplate)
	}
	if err != nil {
		return nil, err
	}
	if t.Name == "" {
		t.Name = name
	}
	l.cache[name] = cachedTemplate{t: &t, mod: mod}
	return &t, nil
}

// Reload drops a cached template so the next use reads it again.
func (l *Library) Reload(name string) {
	l.mu.Lock()
	delete(l.cache, name)
	l.mu.Unlock()
	logger.Log.WithField("prefab", name).Info("prefabs: template reloaded")
}

// Expansion is a template placed at a spawn point, with every position
// absolute and every reference still a sub id.
type Expansion struct {
	Template    string
	Bodies      []PlacedBody
	Constraints []PlacedConstraint
	Rules       []PlacedRule
}

type PlacedBody struct {
	SubID   string
	Kind    physics.Kind
	X, Y    float64
	Options physics.SpawnOptions
}

// PlacedConstraint holds a spec whose body ids are unset. SubA and SubB
// name the bodies; an empty one leaves that point absolute.
type PlacedConstraint struct {
	SubA, SubB string
	Spec       physics.ConstraintSpec
}

type PlacedRule struct {
	Targets         []string
	CollisionTarget string
	Spec            rules.Spec
}

// Expand places template name at (x, y).
func (l *Library) Expand(name string, x, y float64) (Expansion, error) {
	t, err := l.Template(name)
	if err != nil {
		return Expansion{}, err
	}

	origin := cp.Vector{X: x, Y: y}
	out := Expansion{Template: t.Name}

	for i, spec := range t.Bodies {
		kind := spec.Type
		if kind == "" {
			kind = physics.KindBox
		}
		opts := spec.Options
		opts.ID = 0
		opts.Vars = opts.Vars.Clone()
		if spec.Color != nil {
			opts.Color = spec.Color.Hex
		}
		subID := spec.SubID
		if subID == "" {
			subID = fmt.Sprintf("%d", i)
		}
		at := origin.Add(spec.Offset)
		out.Bodies = append(out.Bodies, PlacedBody{SubID: subID, Kind: kind, X: at.X, Y: at.Y, Options: opts})
	}

	for _, c := range t.Constraints {
		spec := physics.ConstraintSpec{
			Kind:      c.Type,
			PointA:    c.PointA,
			PointB:    c.PointB,
			Stiffness: c.Stiffness,
			Damping:   c.Damping,
			Length:    c.Length,
			Color:     c.Color.String(),
		}
		if c.BodyA == "" {
			spec.PointA = origin.Add(c.PointA)
		}
		if c.BodyB == "" {
			spec.PointB = origin.Add(c.PointB)
		}
		out.Constraints = append(out.Constraints, PlacedConstraint{SubA: c.BodyA, SubB: c.BodyB, Spec: spec})
	}

	for _, r := range t.Rules {
		spec := rules.Spec{
			Name:      r.Name,
			Trigger:   r.Trigger,
			Condition: r.Condition,
			Mode:      r.Mode,
			Key:       r.Key,
			Enabled:   r.Enabled,
		}
		if spec.Actions, err = l.actions(r.Actions); err != nil {
			return Expansion{}, fmt.Errorf("prefabs: template %q: %w", name, err)
		}
		if spec.ElseActions, err = l.actions(r.ElseActions); err != nil {
			return Expansion{}, fmt.Errorf("prefabs: template %q: %w", name, err)
		}
		out.Rules = append(out.Rules, PlacedRule{
			Targets:         append([]string(nil), r.Targets...),
			CollisionTarget: r.CollisionTarget,
			Spec:            spec,
		})
	}
	return out, nil
}

func (l *Library) actions(in []ActionTemplate) ([]rules.ActionSpec, error) {
	out := make([]rules.ActionSpec, 0, len(in))
	for _, a := range in {
		spec := a.ActionSpec
		if a.ScriptFile != "" {
			src, err := LoadScript(l.dir, a.ScriptFile)
			if err != nil {
				return nil, fmt.Errorf("script %s: %w", a.ScriptFile, err)
			}
			spec.Script = string(src)
		}
		out = append(out, spec)
	}
	return out, nil
}

// Target receives an instantiated prefab. world.World implements it.
type Target interface {
	SpawnBody(kind physics.Kind, x, y float64, opts physics.SpawnOptions) (*physics.Body, error)
	AddConstraint(spec physics.ConstraintSpec) (*physics.Constraint, error)
	AddRule(spec rules.Spec) (*rules.Rule, error)
}

type Result struct {
	IDs         map[string]physics.BodyID
	Bodies      []physics.BodyID
	Constraints []physics.ConstraintID
	Rules       []rules.RuleID
}

// Instantiate spawns the bodies of x first, then creates its constraints
// and rules with sub ids swapped for the real ids. Anything that names a
// sub id that did not spawn is skipped.
func Instantiate(target Target, x Expansion) (Result, error) {
	res := Result{IDs: make(map[string]physics.BodyID, len(x.Bodies))}
	log := logger.Log.WithField("prefab", x.Template)

	for _, b := range x.Bodies {
		body, err := target.SpawnBody(b.Kind, b.X, b.Y, b.Options)
		if err != nil {
			log.WithError(err).WithField("sub_id", b.SubID).Warn("prefabs: body not spawned")
			continue
		}
		res.IDs[b.SubID] = body.ID
		res.Bodies = append(res.Bodies, body.ID)
	}
	if len(res.Bodies) == 0 && len(x.Bodies) > 0 {
		return res, fmt.Errorf("prefabs: %s spawned no bodies", x.Template)
	}

	resolve := func(sub string) (physics.BodyID, bool) {
		if sub == "" {
			return 0, true
		}
		id, ok := res.IDs[sub]
		return id, ok
	}

	for _, c := range x.Constraints {
		a, okA := resolve(c.SubA)
		b, okB := resolve(c.SubB)
		if !okA || !okB {
			log.WithFields(logrus.Fields{"body_a": c.SubA, "body_b": c.SubB}).Debug("prefabs: skipping unresolved constraint")
			continue
		}
		spec := c.Spec
		spec.BodyA, spec.BodyB = a, b
		made, err := target.AddConstraint(spec)
		if err != nil {
			log.WithError(err).Debug("prefabs: constraint rejected")
			continue
		}
		res.Constraints = append(res.Constraints, made.ID)
	}

	for _, r := range x.Rules {
		spec := r.Spec
		for _, sub := range r.Targets {
			if id, ok := res.IDs[sub]; ok {
				spec.Targets = append(spec.Targets, id)
			}
		}
		if len(spec.Targets) == 0 || len(spec.Targets) != len(r.Targets) {
			log.WithField("targets", r.Targets).Debug("prefabs: skipping unresolved rule")
			continue
		}
		if r.CollisionTarget != "" {
			id, ok := res.IDs[r.CollisionTarget]
			if !ok {
				log.WithField("collision_target", r.CollisionTarget).Debug("prefabs: skipping unresolved rule")
				continue
			}
			spec.CollisionTarget = &id
		}
		made, err := target.AddRule(spec)
		if err != nil {
			log.WithError(err).Warn("prefabs: rule rejected")
			continue
		}
		res.Rules = append(res.Rules, made.ID)
	}

	log.WithFields(logrus.Fields{
		"bodies":      len(res.Bodies),
		"constraints": len(res.Constraints),
		"rules":       len(res.Rules),
	}).Debug("prefabs: instantiated")
	return res, nil
}

// Spawn expands name at (x, y) and instantiates it into target.
func (l *Library) Spawn(target Target, name string, x, y float64) (Result, error) {
	exp, err := l.Expand(name, x, y)
	if err != nil {
		return Result{}, err
	}
	return Instantiate(target, exp)
}
