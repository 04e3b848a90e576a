package mux

import (
	"context"
	"net/http"
)

// routeContextKey is an unexported type for the single context key.
type routeContextKey struct{}

// ctxKey is the single context key used to store the match.
var ctxKey = routeContextKey{}

// routeContext holds the matched route and extracted parameters.
type routeContext struct {
	route  *Route
	vars   map[string]string
	params Params
}

// Params holds converted path parameters keyed by name.
type Params map[string]any

// Match is the three-valued result of matching a request.
type Match int

const (
	// MatchNone means the path (or host) does not match.
	MatchNone Match = iota
	// MatchPartial means the path matches but the method does not.
	MatchPartial
	// MatchFull means path, host and method match.
	MatchFull
)

func (m Match) String() string {
	switch m {
	case MatchFull:
		return "full"
	case MatchPartial:
		return "partial"
	}
	return "none"
}

// RouteMatch stores information about a matched route.
type RouteMatch struct {
	// Route is the matched leaf route on a full match.
	Route *Route

	// Vars holds the raw path parameter strings.
	Vars map[string]string

	// Params holds the converted path parameters.
	Params Params

	// Result is the outcome of the match.
	Result Match

	// Allowed lists the methods of partially matching routes, sorted and
	// deduplicated. It populates the Allow header of 405 responses.
	Allowed []string
}

// Vars returns the raw route variables for the current request, if any.
func Vars(r *http.Request) map[string]string {
	if rc, ok := r.Context().Value(ctxKey).(*routeContext); ok {
		return rc.vars
	}
	return nil
}

// VarGet returns the value of a single route variable by name and a boolean
// indicating whether the variable exists.
func VarGet(r *http.Request, name string) (string, bool) {
	if rc, ok := r.Context().Value(ctxKey).(*routeContext); ok && rc.vars != nil {
		val, exists := rc.vars[name]
		return val, exists
	}
	return "", false
}

// PathParams returns the converted path parameters for the current request.
func PathParams(r *http.Request) Params {
	if rc, ok := r.Context().Value(ctxKey).(*routeContext); ok {
		return rc.params
	}
	return nil
}

// Param returns the converted path parameter name as a T.
//
//	id, ok := mux.Param[int](r, "id")
func Param[T any](r *http.Request, name string) (T, bool) {
	v, ok := PathParams(r)[name].(T)
	return v, ok
}

// CurrentRoute returns the matched route for the current request, if any.
func CurrentRoute(r *http.Request) *Route {
	if rc, ok := r.Context().Value(ctxKey).(*routeContext); ok {
		return rc.route
	}
	return nil
}

// SetURLVars sets the URL variables for the given request, returning the
// modified request. This is intended for testing route handlers.
func SetURLVars(r *http.Request, val map[string]string) *http.Request {
	rc := &routeContext{vars: val}
	if prev, ok := r.Context().Value(ctxKey).(*routeContext); ok {
		rc.route = prev.route
		rc.params = prev.params
	}
	return r.WithContext(context.WithValue(r.Context(), ctxKey, rc))
}

// setRouteContext stores the match in the request context.
func setRouteContext(r *http.Request, m *RouteMatch) *http.Request {
	rc := &routeContext{route: m.Route, vars: m.Vars, params: m.Params}
	return r.WithContext(context.WithValue(r.Context(), ctxKey, rc))
}

// MatcherFunc is a custom route condition. A false result is a mismatch.
type MatcherFunc func(*http.Request) bool

// WalkFunc is the type of the function called for each route visited by Walk.
// At every invocation, it is given the current route and router, as well as
// a list of ancestor routes that led to the current route.
type WalkFunc func(route *Route, router *Router, ancestors []*Route) error
