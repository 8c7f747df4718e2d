package vm

import "sort"

// Globals is the global-variable table. Redefinition overwrites.
type Globals struct {
	values map[string]Value
}

// NewGlobals creates an empty table.
func NewGlobals() *Globals {
	return &Globals{values: make(map[string]Value)}
}

// Define binds name to v, replacing any earlier binding.
func (g *Globals) Define(name string, v Value) {
	g.values[name] = v
}

// Get returns the value bound to name.
func (g *Globals) Get(name string) (Value, bool) {
	v, ok := g.values[name]
	return v, ok
}

// Len returns the number of bindings.
func (g *Globals) Len() int {
	return len(g.values)
}

// Names returns the bound names in sorted order.
func (g *Globals) Names() []string {
	names := make([]string, 0, len(g.values))
	for name := range g.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
