package relay

import "sort"

// Registry maps tool names to tools. It is populated during session setup
// and read-only once traffic begins; registration is a single-writer
// operation that never races with dispatch reads. The relay core ships no
// built-in tools.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. The last registration for a given name wins,
// allowing late reconfiguration before traffic starts.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name()] = t
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the schemas of all registered tools, ordered by name.
// This is the tool list written into every session-configuration event.
func (r *Registry) Schemas() []*ToolSchema {
	schemas := make([]*ToolSchema, 0, len(r.tools))
	for _, name := range r.Names() {
		schemas = append(schemas, r.tools[name].Schema)
	}
	return schemas
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}
