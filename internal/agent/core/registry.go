package core

import "sort"

// Registry maps tool names to their specs. It is populated once at startup
// and read-only afterwards, so concurrent reads across runs need no locking.
type Registry struct {
	tools map[string]ToolSpec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolSpec)}
}

// Register adds a tool. Registering the same name twice is a configuration
// error and fails loudly instead of silently replacing.
func (r *Registry) Register(spec ToolSpec) error {
	if _, exists := r.tools[spec.Name]; exists {
		return &DuplicateToolError{Name: spec.Name}
	}
	r.tools[spec.Name] = spec
	return nil
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (ToolSpec, bool) {
	spec, ok := r.tools[name]
	return spec, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the registered specs in name order, for prompt construction.
func (r *Registry) Specs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, name := range r.Names() {
		specs = append(specs, r.tools[name])
	}
	return specs
}
