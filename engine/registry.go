package engine

import (
	"fmt"
	"sort"
	"sync"
)

// OpenerInfo pairs a registered opener name with its description.
type OpenerInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds named engine openers so a deployment can select an engine
// implementation from configuration.
type Registry struct {
	mu      sync.RWMutex
	openers map[string]registration
}

type registration struct {
	open        Opener
	description string
}

// NewRegistry creates an empty opener registry.
func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]registration)}
}

// Register adds an opener under the given name, replacing any previous
// registration.
func (r *Registry) Register(name, description string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[name] = registration{open: open, description: description}
}

// Resolve returns the opener registered under name.
func (r *Registry) Resolve(name string) (Opener, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.openers[name]
	if !ok {
		return nil, fmt.Errorf("engine %q is not registered", name)
	}
	return reg.open, nil
}

// List returns the registered openers, sorted by name for a stable API
// response.
func (r *Registry) List() []OpenerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]OpenerInfo, 0, len(r.openers))
	for name, reg := range r.openers {
		infos = append(infos, OpenerInfo{Name: name, Description: reg.description})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
