package mux

import (
	"errors"
	"fmt"
	"maps"
)

// layers is what one level of the tree (a router or a route) contributes
// to the stack of every route below it.
type layers struct {
	middleware    []Middleware
	permissions   []Permission
	errorHandlers *ErrorHandlers
	deps          Dependencies
	errs          []error
}

func (l *layers) use(mws []Middleware) {
	for _, mw := range mws {
		if isNilMiddleware(mw) {
			l.errs = append(l.errs, errors.New("mux: nil middleware"))
			continue
		}
		l.middleware = append(l.middleware, mw)
	}
}

func (l *layers) permit(perms []Permission) {
	for _, p := range perms {
		if p == nil {
			l.errs = append(l.errs, errors.New("mux: nil permission"))
			continue
		}
		l.permissions = append(l.permissions, p)
	}
}

func (l *layers) handleErrors(eh *ErrorHandlers) {
	if eh == nil {
		l.errs = append(l.errs, errors.New("mux: nil error handlers"))
		return
	}
	l.errorHandlers = l.errorHandlers.Merge(eh)
}

func (l *layers) provide(deps Dependencies) {
	if err := deps.check(); err != nil {
		l.errs = append(l.errs, err)
		return
	}
	if l.deps == nil {
		l.deps = make(Dependencies, len(deps))
	}
	maps.Copy(l.deps, deps)
}

func (l *layers) err() error {
	return errors.Join(append(l.errs, l.errorHandlers.Err())...)
}

// wrap builds errorHandlers(middleware(permissions(next))). The exception
// layer is skipped when withErrors is false.
func (l *layers) wrap(next Endpoint, withErrors bool) Endpoint {
	h := guard(l.permissions, next)
	h = Chain(h, l.middleware...)
	if withErrors && l.errorHandlers != nil {
		h = l.errorHandlers.Wrap(h)
	}
	return h
}

// compose builds the stack of a leaf route relative to root: the handler,
// the merged dependencies, the route's own level, then each router and
// mounting route on the way up.
func (rt *Route) compose(root *Router) Endpoint {
	h := rt.handler

	levels := []*layers{&rt.layers}
	for router := rt.router; ; {
		levels = append(levels, &router.layers)
		if router == root || router.parent == nil {
			break
		}
		levels = append(levels, &router.parent.layers)
		router = router.parent.router
	}

	deps := make(Dependencies)
	for i := len(levels) - 1; i >= 0; i-- {
		maps.Copy(deps, levels[i].deps)
	}
	if len(deps) > 0 {
		h = deps.resolve(h)
	}

	for i, l := range levels {
		// The root router's exception layer wraps dispatch instead so it
		// also sees 404 and 405.
		h = l.wrap(h, i != len(levels)-1 || l != &root.layers)
	}
	return h
}

// buildStacks composes the stack of every leaf below r.
func (r *Router) buildStacks(root *Router) {
	for _, rt := range r.routes {
		if rt.sub != nil {
			rt.sub.buildStacks(root)
			continue
		}
		rt.stack = rt.compose(root)
	}
}

// validate collects configuration errors of the whole tree.
func (r *Router) validate() error {
	var errs []error
	names := make(map[string]bool)

	var visit func(router *Router, ns string)
	visit = func(router *Router, ns string) {
		if err := router.layers.err(); err != nil {
			errs = append(errs, err)
		}
		for _, rt := range router.routes {
			if rt.err != nil {
				errs = append(errs, rt.err)
			}
			if err := rt.layers.err(); err != nil {
				errs = append(errs, fmt.Errorf("mux: route %s: %w", rt.describe(), err))
			}
			if rt.namespace != "" && rt.sub == nil {
				errs = append(errs, fmt.Errorf("mux: namespace %q on route %s without a subrouter", rt.namespace, rt.describe()))
			}
			if rt.name != "" {
				full := ns + rt.name
				if names[full] {
					errs = append(errs, fmt.Errorf("mux: duplicate route name %q", full))
				}
				names[full] = true
			}
			switch {
			case rt.sub != nil:
				inner := ns
				if rt.namespace != "" {
					inner = ns + rt.namespace + ":"
				}
				visit(rt.sub, inner)
			case rt.handler == nil:
				errs = append(errs, fmt.Errorf("mux: route %s has no handler", rt.describe()))
			}
		}
	}
	visit(r, "")

	return errors.Join(errs...)
}
