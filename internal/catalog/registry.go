package catalog

import (
	"fmt"

	"github.com/eliteGoblin/shield/internal/domain"
)

// Registry holds every feature, in registration order.
type Registry struct {
	features map[string]Feature
	order    []string
}

// NewRegistry creates a registry with all built-in features.
func NewRegistry() *Registry {
	return NewRegistryWithFeatures(
		NewHardeningFeature(),
		NewDebloatFeature(),
		NewMiscFeature(),
		NewNetworkFeature(),
		NewStorageFeature(),
		NewStartupFeature(),
		NewBatteryFeature(),
		NewUpdateFeature(),
		NewSoftwareFeature(),
		NewBrowserFeature(),
		NewToolsFeature(),
		NewSystemFeature(),
	)
}

// NewRegistryWithFeatures creates a registry with custom features (for testing).
func NewRegistryWithFeatures(features ...Feature) *Registry {
	r := &Registry{features: make(map[string]Feature)}
	for _, f := range features {
		r.Register(f)
	}
	return r
}

// Register adds a feature. Re-registering an id replaces it in place.
func (r *Registry) Register(f Feature) {
	if _, exists := r.features[f.ID()]; !exists {
		r.order = append(r.order, f.ID())
	}
	r.features[f.ID()] = f
}

// Get returns a feature by ID.
func (r *Registry) Get(id string) (Feature, bool) {
	f, ok := r.features[id]
	return f, ok
}

// GetAll returns all features in registration order.
func (r *Registry) GetAll() []Feature {
	result := make([]Feature, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.features[id])
	}
	return result
}

// List returns all feature IDs in registration order.
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// ModuleFeature returns a toggle catalog, or ErrFeatureNotFound.
func (r *Registry) ModuleFeature(id string) (*ModuleFeature, error) {
	f, ok := r.features[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFeatureNotFound, id)
	}
	mf, ok := f.(*ModuleFeature)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no modules", domain.ErrFeatureNotFound, id)
	}
	return mf, nil
}

// ModuleFeatures returns all toggle catalogs in registration order.
func (r *Registry) ModuleFeatures() []*ModuleFeature {
	var result []*ModuleFeature
	for _, f := range r.GetAll() {
		if mf, ok := f.(*ModuleFeature); ok {
			result = append(result, mf)
		}
	}
	return result
}

// ActionFeature returns an action set, or ErrFeatureNotFound.
func (r *Registry) ActionFeature(id string) (*ActionFeature, error) {
	f, ok := r.features[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFeatureNotFound, id)
	}
	af, ok := f.(*ActionFeature)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no actions", domain.ErrFeatureNotFound, id)
	}
	return af, nil
}

// Action resolves feature and action in one step.
func (r *Registry) Action(featureID, actionID string) (ActionSpec, error) {
	af, err := r.ActionFeature(featureID)
	if err != nil {
		return ActionSpec{}, err
	}
	a, ok := af.Action(actionID)
	if !ok {
		return ActionSpec{}, fmt.Errorf("%w: %s/%s", domain.ErrActionNotFound, featureID, actionID)
	}
	return a, nil
}

// Summary is the listing form of a feature.
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Count int    `json:"count"`
}

// Summaries lists every feature with its module or action count.
func (r *Registry) Summaries() []Summary {
	result := make([]Summary, 0, len(r.order))
	for _, f := range r.GetAll() {
		s := Summary{ID: f.ID(), Name: f.Name(), Kind: f.Kind()}
		switch v := f.(type) {
		case *ModuleFeature:
			s.Count = len(v.modules)
		case *ActionFeature:
			s.Count = len(v.actions)
		}
		result = append(result, s)
	}
	return result
}
