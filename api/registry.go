package api

import (
	"github.com/dolthub/swiss"

	"github.com/vela-lang/vela/runtime"
)

// Registry is a name -> light C function lookup table, the shape a host
// embedding uses to expose a base/standard library without the VM needing
// to know each function's name at compile time (§6's light-C-function
// convention). Backed by dolthub/swiss: this is a plain string-keyed lookup
// with no ordering, eviction, or traversal-during-mutation requirement, the
// one spot in this codebase where a generic high-performance map is exactly
// the right tool (contrast runtime/table.go's hash part, which needs exact
// main-position/eviction/tombstone semantics swiss does not expose).
type Registry struct {
	m *swiss.Map[string, runtime.LightFunc]
}

// NewRegistry preallocates room for capacity entries.
func NewRegistry(capacity uint32) *Registry {
	return &Registry{m: swiss.NewMap[string, runtime.LightFunc](capacity)}
}

// Register adds or replaces the function named name.
func (r *Registry) Register(name string, fn func(th *runtime.Thread, args []runtime.Value) ([]runtime.Value, error)) {
	r.m.Put(name, runtime.LightFunc{Name: name, Fn: fn})
}

// Lookup returns the registered function value for name, if any, as a
// pushable runtime.Value.
func (r *Registry) Lookup(name string) (runtime.Value, bool) {
	lf, ok := r.m.Get(name)
	if !ok {
		return nil, false
	}
	return lf, true
}

// Count reports how many functions are registered.
func (r *Registry) Count() int { return r.m.Count() }

// InstallGlobals pushes every registered function into g's globals table
// under its registered name, the usual way a host wires a base library in
// before running any script.
func (r *Registry) InstallGlobals(g *runtime.GlobalState) {
	globals := g.Globals()
	r.m.Iter(func(name string, lf runtime.LightFunc) bool {
		globals.Set(g.NewString(name), lf)
		return false
	})
}
