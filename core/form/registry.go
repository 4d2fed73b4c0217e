package form

import "github.com/pkg/errors"

// Registry holds the forms an app serves, in registration order.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

func NewRegistry(defs ...*Definition) (*Registry, error) {
	reg := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, def := range defs {
		if _, ok := reg.defs[def.Name()]; ok {
			return nil, errors.Errorf("form %q registered twice", def.Name())
		}
		reg.defs[def.Name()] = def
		reg.order = append(reg.order, def.Name())
	}
	return reg, nil
}

func (reg *Registry) Get(name string) (*Definition, error) {
	def, ok := reg.defs[name]
	if !ok {
		return nil, ErrFormNotFound
	}
	return def, nil
}

// List describes the forms visible to the given roles.
func (reg *Registry) List(roles []string) []Info {
	infos := make([]Info, 0, len(reg.order))
	for _, name := range reg.order {
		if def := reg.defs[name]; def.AllowedFor(roles) {
			infos = append(infos, def.Info())
		}
	}
	return infos
}

// Definitions returns every registered form in registration order.
func (reg *Registry) Definitions() []*Definition {
	defs := make([]*Definition, 0, len(reg.order))
	for _, name := range reg.order {
		defs = append(defs, reg.defs[name])
	}
	return defs
}
