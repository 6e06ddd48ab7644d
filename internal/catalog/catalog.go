// Package catalog holds the immutable feature definitions: toggle module
// catalogs, script action sets, and the built-in hardening profiles.
// Each feature is defined once and looked up through the Registry.
package catalog

import (
	"fmt"
	"strings"

	"github.com/eliteGoblin/shield/internal/domain"
)

// Kind distinguishes toggle catalogs from action sets.
type Kind string

const (
	KindModules Kind = "modules"
	KindActions Kind = "actions"
)

// Feature is one user-facing area of the product (hardening, network, ...).
type Feature interface {
	// ID returns the routing identifier, e.g. "hardening".
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// Kind tells whether the feature is a toggle catalog or an action set.
	Kind() Kind
}

// ModuleFeature is a catalog of on/off modules, each backed by one script
// that understands -Action Query|Enable|Disable.
type ModuleFeature struct {
	id      string
	name    string
	modules []domain.ModuleDescriptor
	index   map[string]int
}

// NewModuleFeature builds a module catalog. Duplicate ids panic; catalogs are
// compiled in, so a duplicate is a programming error.
func NewModuleFeature(id, name string, modules ...domain.ModuleDescriptor) *ModuleFeature {
	f := &ModuleFeature{
		id:      id,
		name:    name,
		modules: modules,
		index:   make(map[string]int, len(modules)),
	}
	for i, m := range modules {
		if _, dup := f.index[m.ID]; dup {
			panic(fmt.Sprintf("catalog %s: duplicate module id %q", id, m.ID))
		}
		f.index[m.ID] = i
	}
	return f
}

func (f *ModuleFeature) ID() string   { return f.id }
func (f *ModuleFeature) Name() string { return f.name }
func (f *ModuleFeature) Kind() Kind   { return KindModules }

// Modules returns the descriptors in display order.
func (f *ModuleFeature) Modules() []domain.ModuleDescriptor {
	return append([]domain.ModuleDescriptor(nil), f.modules...)
}

// Module looks up one descriptor.
func (f *ModuleFeature) Module(id string) (domain.ModuleDescriptor, bool) {
	i, ok := f.index[id]
	if !ok {
		return domain.ModuleDescriptor{}, false
	}
	return f.modules[i], true
}

// IDs returns all module ids in display order.
func (f *ModuleFeature) IDs() []string {
	ids := make([]string, len(f.modules))
	for i, m := range f.modules {
		ids[i] = m.ID
	}
	return ids
}

// Param is a named script parameter, passed as -<Name> <value>.
type Param struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// ActionSpec is one invocable script action.
type ActionSpec struct {
	ID            string  `json:"id"`
	Description   string  `json:"description"`
	Script        string  `json:"script"`
	Verb          string  `json:"verb,omitempty"` // "" means the script takes no -Action
	Params        []Param `json:"params,omitempty"`
	RequiresAdmin bool    `json:"requiresAdmin"`
	// NormalizeArray wraps a single object result into a one-element array.
	// PowerShell's ConvertTo-Json unrolls one-item collections.
	NormalizeArray bool `json:"normalizeArray,omitempty"`
}

// Args builds the script argv for the given parameter values.
// Missing required and unknown parameters are rejected.
func (a ActionSpec) Args(values map[string]string) ([]string, error) {
	var args []string
	if a.Verb != "" {
		args = append(args, "-Action", a.Verb)
	}

	known := make(map[string]bool, len(a.Params))
	for _, p := range a.Params {
		known[p.Name] = true
		v, ok := values[p.Name]
		if !ok || v == "" {
			if p.Required {
				return nil, fmt.Errorf("%w: action %s requires parameter %s", domain.ErrInvalidArgument, a.ID, p.Name)
			}
			continue
		}
		args = append(args, "-"+p.Name, v)
	}

	var unknown []string
	for name := range values {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: action %s does not take %s", domain.ErrInvalidArgument, a.ID, strings.Join(unknown, ", "))
	}
	return args, nil
}

// ActionFeature is a set of actions, normally all served by one script.
type ActionFeature struct {
	id      string
	name    string
	actions []ActionSpec
	index   map[string]int
}

// NewActionFeature builds an action set. Actions without a Script use
// defaultScript.
func NewActionFeature(id, name, defaultScript string, actions ...ActionSpec) *ActionFeature {
	f := &ActionFeature{
		id:      id,
		name:    name,
		actions: make([]ActionSpec, len(actions)),
		index:   make(map[string]int, len(actions)),
	}
	for i, a := range actions {
		if a.Script == "" {
			a.Script = defaultScript
		}
		if _, dup := f.index[a.ID]; dup {
			panic(fmt.Sprintf("catalog %s: duplicate action id %q", id, a.ID))
		}
		f.actions[i] = a
		f.index[a.ID] = i
	}
	return f
}

func (f *ActionFeature) ID() string   { return f.id }
func (f *ActionFeature) Name() string { return f.name }
func (f *ActionFeature) Kind() Kind   { return KindActions }

// Actions returns the action specs in display order.
func (f *ActionFeature) Actions() []ActionSpec {
	return append([]ActionSpec(nil), f.actions...)
}

// Action looks up one action.
func (f *ActionFeature) Action(id string) (ActionSpec, bool) {
	i, ok := f.index[id]
	if !ok {
		return ActionSpec{}, false
	}
	return f.actions[i], true
}

func verbAction(verb, description string, params ...Param) ActionSpec {
	return ActionSpec{ID: verb, Verb: verb, Description: description, Params: params}
}

func adminAction(verb, description string, params ...Param) ActionSpec {
	a := verbAction(verb, description, params...)
	a.RequiresAdmin = true
	return a
}

func listAction(verb, description string) ActionSpec {
	a := verbAction(verb, description)
	a.NormalizeArray = true
	return a
}

func required(name string) Param { return Param{Name: name, Required: true} }
func optional(name string) Param { return Param{Name: name} }
