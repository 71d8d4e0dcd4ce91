// Package controller maps resource types to their controllers and runs
// reconciliation invocations across them.
package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
)

// Registration describes a registered controller.
type Registration struct {
	Type        resource.Type
	Modes       []reconcile.Mode
	Description string
}

// Accepts reports whether the controller accepts mode.
func (r Registration) Accepts(mode reconcile.Mode) bool {
	for _, m := range r.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// runner is the type-erased side of a reconcile.Controller.
type runner interface {
	run(ctx context.Context, docs []resource.Document, mode reconcile.Mode, rc *reconcile.Context) (*batch, error)
}

type entry struct {
	reg    Registration
	runner runner
}

// Registry holds the controller for every resource type. It is populated
// during startup and frozen before the first reconciliation.
type Registry struct {
	mu      sync.RWMutex
	entries map[resource.Type]*entry
	order   []resource.Type
	frozen  bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[resource.Type]*entry),
	}
}

// Register adds a controller for reg.Type.
func Register[T any](r *Registry, reg Registration, ctrl reconcile.Controller[T]) error {
	if reg.Type.APIVersion == "" || reg.Type.Kind == "" {
		return errs.Configf("register", "apiVersion and kind are required")
	}
	if len(reg.Modes) == 0 {
		return errs.Configf("register", "%s accepts no reconciliation mode", reg.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errs.Config("register "+reg.Type.String(), errs.ErrRegistryFrozen)
	}
	if _, exists := r.entries[reg.Type]; exists {
		return errs.Configf("register", "controller for %s already registered", reg.Type)
	}

	r.entries[reg.Type] = &entry{reg: reg, runner: &typedRunner[T]{ctrl: ctrl}}
	r.order = append(r.order, reg.Type)
	return nil
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Lookup returns the registration for a type.
func (r *Registry) Lookup(typ resource.Type) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[typ]
	if !ok {
		return Registration{}, false
	}
	return e.reg, true
}

// Registrations returns all registrations in registration order.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]Registration, 0, len(r.order))
	for _, typ := range r.order {
		regs = append(regs, r.entries[typ].reg)
	}
	return regs
}

// resolve validates that every type has a controller accepting mode.
func (r *Registry) resolve(types []resource.Type, mode reconcile.Mode) ([]*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*entry, 0, len(types))
	for _, typ := range types {
		e, ok := r.entries[typ]
		if !ok {
			return nil, errs.Config("resolve", fmt.Errorf("%w %s", errs.ErrUnknownKind, typ))
		}
		if !e.reg.Accepts(mode) {
			return nil, errs.Config("resolve", fmt.Errorf("%w %s for %s", errs.ErrUnsupportedMode, mode, typ))
		}
		entries = append(entries, e)
	}
	return entries, nil
}
