package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

// Registry manages source factories by warning type.
type Registry struct {
	mu        sync.RWMutex
	factories map[model.WarningType]Factory
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[model.WarningType]Factory),
	}
}

// DefaultRegistry returns a registry with every built-in source registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(model.WarningLandslide, NewLandslide)
	_ = r.Register(model.WarningFlood, NewFlood)
	_ = r.Register(model.WarningAvalanche, NewAvalanche)
	_ = r.Register(model.WarningWeather, NewMetAlerts)
	return r
}

// Register adds a factory for a warning type.
func (r *Registry) Register(t model.WarningType, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[t]; exists {
		return fmt.Errorf("source %q already registered", t)
	}
	r.factories[t] = f
	return nil
}

// Get returns the factory for a warning type.
func (r *Registry) Get(t model.WarningType) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[t]
	if !ok {
		return nil, model.InvalidConfig("source %q not found", t)
	}
	return f, nil
}

// List returns all registered warning types, sorted.
func (r *Registry) List() []model.WarningType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]model.WarningType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// New builds the sources of a warning type. "both" yields landslide then flood.
func (r *Registry) New(t model.WarningType, p Params) ([]Source, error) {
	types := []model.WarningType{t}
	if t == model.WarningBoth {
		types = []model.WarningType{model.WarningLandslide, model.WarningFlood}
	}

	out := make([]Source, 0, len(types))
	for _, wt := range types {
		f, err := r.Get(wt)
		if err != nil {
			return nil, err
		}
		s, err := f(p)
		if err != nil {
			return nil, fmt.Errorf("create %s source: %w", wt, err)
		}
		out = append(out, s)
	}
	return out, nil
}
