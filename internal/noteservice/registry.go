package noteservice

import (
	"fmt"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/models"
)

// Registry maps vault names to their services. It is built once at startup
// and never changes afterwards, so it is safe for concurrent use.
type Registry struct {
	def      string
	order    []string
	services map[string]*Service
}

// NewRegistry builds a registry from services. def names the vault used when
// a caller does not pick one.
func NewRegistry(def string, services ...*Service) (*Registry, error) {
	r := &Registry{def: def, services: make(map[string]*Service, len(services))}
	for _, svc := range services {
		if _, dup := r.services[svc.Name()]; dup {
			return nil, fmt.Errorf("noteservice: duplicate vault %q", svc.Name())
		}
		r.services[svc.Name()] = svc
		r.order = append(r.order, svc.Name())
	}
	if _, ok := r.services[def]; !ok {
		return nil, fmt.Errorf("noteservice: default vault %q is not configured", def)
	}
	return r, nil
}

// Get returns the service for name; the empty name selects the default vault.
func (r *Registry) Get(name string) (*Service, error) {
	if name == "" {
		name = r.def
	}
	svc, ok := r.services[name]
	if !ok {
		return nil, apperr.VaultNotFound(name)
	}
	return svc, nil
}

// Default returns the default vault name.
func (r *Registry) Default() string { return r.def }

// List describes every vault in configuration order.
func (r *Registry) List() []models.VaultInfo {
	out := make([]models.VaultInfo, 0, len(r.order))
	for _, name := range r.order {
		info := r.services[name].Info()
		info.Default = name == r.def
		out = append(out, info)
	}
	return out
}
