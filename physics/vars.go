package physics

import "strings"

// ReservedPrefix marks keys owned by the engine. User-authored variable
// names must not start with it.
const ReservedPrefix = "__"

const cyclePrefix = ReservedPrefix + "cycle:"

// Vars is a body's scratch map of named numbers. Missing keys read as 0.
type Vars map[string]float64

func IsReserved(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}

// CycleKey is the reserved key holding the position of a color cycle.
func CycleKey(colors string) string {
	return cyclePrefix + colors
}

func (v Vars) Get(name string) float64 {
	return v[name]
}

func (v Vars) Set(name string, value float64) {
	v[name] = value
}

func (v Vars) Add(name string, delta float64) float64 {
	v[name] += delta
	return v[name]
}

func (v Vars) Mul(name string, factor float64) float64 {
	v[name] *= factor
	return v[name]
}

// User returns the entries that are not reserved.
func (v Vars) User() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		if IsReserved(k) {
			continue
		}
		out[k] = val
	}
	return out
}

func (v Vars) Clone() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
