package indicator

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"

	"indstream/internal/model"
)

// Factory builds an indicator from positional parameters.
type Factory func(a *Args) (Indicator, error)

// Registry maps indicator names to factories. Names are case-insensitive.
// A Registry is not safe for concurrent Register calls; Create may run
// concurrently once registration is done.
type Registry struct {
	factories *treemap.Map // name → Factory, kept sorted for Names
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: treemap.NewWithStringComparator()}
}

// DefaultRegistry returns a new registry holding every builtin indicator.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, b := range builtins {
		for _, name := range b.names {
			if err := r.Register(name, b.factory); err != nil {
				panic(err)
			}
		}
	}
	return r
}

var defaultRegistry = DefaultRegistry()

// Create builds a builtin indicator by name.
func Create(name string, params ...any) (Indicator, error) {
	return defaultRegistry.Create(name, params...)
}

// Register adds a factory under name. Registering a name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	key := normalizeName(name)
	if key == "" {
		return fmt.Errorf("register indicator: empty name")
	}
	if f == nil {
		return fmt.Errorf("register indicator %q: nil factory", key)
	}
	if _, found := r.factories.Get(key); found {
		return fmt.Errorf("register indicator %q: already registered", key)
	}
	r.factories.Put(key, f)
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, found := r.factories.Get(normalizeName(name))
	return found
}

// Create builds a fresh instance. Unknown names fail with
// model.ErrUnknownIndicator, bad parameters with model.ErrConfig.
func (r *Registry) Create(name string, params ...any) (Indicator, error) {
	key := normalizeName(name)
	v, found := r.factories.Get(key)
	if !found {
		return nil, &model.UnknownIndicatorError{Name: name}
	}
	args := &Args{name: key, vals: params}
	ind, err := v.(Factory)(args)
	if err != nil {
		return nil, err
	}
	if err := args.Err(); err != nil {
		return nil, err
	}
	return ind, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	keys := r.factories.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.(string)
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
