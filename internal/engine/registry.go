package engine

import (
	"fmt"
	"strings"
)

// Registry holds the engines that are usable on this host.
type Registry struct {
	engines map[string]Engine
	order   []string
}

// NewRegistry probes every engine and keeps the available ones, preserving
// the given priority order.
func NewRegistry(all ...Engine) *Registry {
	r := &Registry{engines: make(map[string]Engine)}
	for _, e := range all {
		name := strings.ToLower(e.Name())
		if _, dup := r.engines[name]; dup || !e.Available() {
			continue
		}
		r.engines[name] = e
		r.order = append(r.order, name)
	}
	return r
}

// Get returns the named engine, or nil if it is unavailable.
func (r *Registry) Get(name string) Engine {
	return r.engines[strings.ToLower(name)]
}

// Resolve returns the named engine, or the highest priority one when name
// is empty.
func (r *Registry) Resolve(name string) (Engine, error) {
	if name == "" {
		if len(r.order) == 0 {
			return nil, ErrUnavailable
		}
		return r.engines[r.order[0]], nil
	}
	if e := r.Get(name); e != nil {
		return e, nil
	}
	avail := "none"
	if names := r.Available(); len(names) > 0 {
		avail = strings.Join(names, ", ")
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnavailable, name, avail)
}

// Available returns the usable engine names in priority order.
func (r *Registry) Available() []string {
	return append([]string(nil), r.order...)
}
