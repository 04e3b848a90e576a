package mux

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
)

// Provider resolves a dependency for one request.
type Provider func(*http.Request) (any, error)

// Dependencies maps names to providers. Declared on routers and routes;
// a name declared closer to the handler overrides outer declarations.
type Dependencies map[string]Provider

// Value returns a provider that always yields v.
func Value(v any) Provider {
	return func(*http.Request) (any, error) {
		return v, nil
	}
}

type dependencyKey struct{}

// Dependency returns the resolved dependency name as a T.
func Dependency[T any](r *http.Request, name string) (T, bool) {
	values, _ := r.Context().Value(dependencyKey{}).(map[string]any)
	v, ok := values[name].(T)
	return v, ok
}

// resolve returns an Endpoint that resolves every provider in name order,
// stores the values in the request context and calls next.
func (d Dependencies) resolve(next Endpoint) Endpoint {
	names := slices.Sorted(maps.Keys(d))
	return func(w http.ResponseWriter, r *http.Request) error {
		values := make(map[string]any, len(names))
		for _, name := range names {
			v, err := d[name](r)
			if err != nil {
				return fmt.Errorf("mux: dependency %q: %w", name, err)
			}
			values[name] = v
		}
		return next(w, r.WithContext(context.WithValue(r.Context(), dependencyKey{}, values)))
	}
}

func (d Dependencies) check() error {
	for _, name := range slices.Sorted(maps.Keys(d)) {
		if d[name] == nil {
			return fmt.Errorf("mux: nil provider for dependency %q", name)
		}
	}
	return nil
}
