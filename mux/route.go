package mux

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// Route stores information to match a request and build URLs.
type Route struct {
	layers

	router    *Router
	name      string
	namespace string
	host      *pathPattern
	path      *pathPattern
	methods   []string
	matchers  []MatcherFunc
	handler   Endpoint
	sub       *Router
	err       error

	// stack is the handler wrapped in every level above it, set by Build.
	stack Endpoint
}

func (r *Route) setErr(err error) *Route {
	r.err = errors.Join(r.err, err)
	r.router.invalidate()
	return r
}

// search matches the route against path and host. Parameters are written
// to m only on a full match; allowed methods are appended on a partial one.
func (r *Route) search(req *http.Request, path, host string, m *RouteMatch) Match {
	if r.err != nil {
		return MatchNone
	}

	var (
		vars   map[string]string
		params Params
		rest   = path
	)
	if r.host != nil {
		hv, hp, _, ok := r.host.match(host)
		if !ok {
			return MatchNone
		}
		vars, params = mergeParams(vars, params, hv, hp)
	}
	if r.path != nil {
		pv, pp, remainder, ok := r.path.match(path)
		if !ok {
			return MatchNone
		}
		vars, params = mergeParams(vars, params, pv, pp)
		rest = remainder
	}
	for _, f := range r.matchers {
		if !f(req) {
			return MatchNone
		}
	}

	if r.sub != nil {
		var inner RouteMatch
		switch r.sub.search(req, rest, host, &inner) {
		case MatchFull:
			if !r.allows(req.Method) {
				m.Allowed = append(m.Allowed, r.allowedMethods()...)
				return MatchPartial
			}
			m.Route = inner.Route
			m.Vars, m.Params = mergeParams(vars, params, inner.Vars, inner.Params)
			return MatchFull
		case MatchPartial:
			// Methods on the mount narrow what the inner routes allow.
			// When nothing is left, no request can reach the path.
			allowed := 0
			for _, method := range inner.Allowed {
				if r.allows(method) {
					m.Allowed = append(m.Allowed, method)
					allowed++
				}
			}
			if allowed == 0 {
				return MatchNone
			}
			return MatchPartial
		}
		return MatchNone
	}

	if !r.allows(req.Method) {
		m.Allowed = append(m.Allowed, r.allowedMethods()...)
		return MatchPartial
	}
	m.Route, m.Vars, m.Params = r, vars, params
	return MatchFull
}

// mergeParams returns outer overlaid with inner. Inner values win.
func mergeParams(outerVars map[string]string, outer Params, innerVars map[string]string, inner Params) (map[string]string, Params) {
	if len(innerVars) == 0 {
		return outerVars, outer
	}
	if len(outerVars) == 0 {
		return innerVars, inner
	}
	vars := maps.Clone(outerVars)
	maps.Copy(vars, innerVars)
	params := maps.Clone(outer)
	maps.Copy(params, inner)
	return vars, params
}

// allows reports whether method is accepted. GET implies HEAD.
func (r *Route) allows(method string) bool {
	if r.methods == nil {
		return true
	}
	if slices.Contains(r.methods, method) {
		return true
	}
	return method == http.MethodHead && slices.Contains(r.methods, http.MethodGet)
}

func (r *Route) allowedMethods() []string {
	out := slices.Clone(r.methods)
	if slices.Contains(out, http.MethodGet) && !slices.Contains(out, http.MethodHead) {
		out = append(out, http.MethodHead)
	}
	return out
}

// describe names the route in error messages.
func (r *Route) describe() string {
	switch {
	case r.name != "":
		return fmt.Sprintf("%q", r.name)
	case r.path != nil:
		return fmt.Sprintf("%q", r.path.template)
	case r.host != nil:
		return fmt.Sprintf("host %q", r.host.template)
	}
	return "<unnamed>"
}

// --- Configuration ---

// Handler sets a plain http.Handler for the route.
func (r *Route) Handler(handler http.Handler) *Route {
	if handler == nil {
		return r.setErr(fmt.Errorf("mux: nil handler for route %s", r.describe()))
	}
	return r.HandlerFunc(HandlerEndpoint(handler))
}

// HandlerFunc sets the Endpoint for the route.
func (r *Route) HandlerFunc(f Endpoint) *Route {
	if f == nil {
		return r.setErr(fmt.Errorf("mux: nil handler for route %s", r.describe()))
	}
	if r.sub != nil {
		return r.setErr(fmt.Errorf("mux: route %s already has a subrouter", r.describe()))
	}
	r.handler = f
	r.router.invalidate()
	return r
}

// GetHandler returns the Endpoint for the route, if any.
func (r *Route) GetHandler() Endpoint {
	return r.handler
}

// Name sets the name for the route, used to build URLs.
// Names must not contain ':' which separates namespaces.
func (r *Route) Name(name string) *Route {
	if name == "" || strings.Contains(name, ":") {
		return r.setErr(fmt.Errorf("mux: invalid route name %q", name))
	}
	r.name = name
	r.router.invalidate()
	return r
}

// GetName returns the name for the route, if any.
func (r *Route) GetName() string {
	return r.name
}

// Namespace scopes the names of the routes in this route's subrouter, so
// a route named "detail" becomes addressable as "ns:detail".
func (r *Route) Namespace(ns string) *Route {
	if ns == "" || strings.Contains(ns, ":") {
		return r.setErr(fmt.Errorf("mux: invalid namespace %q", ns))
	}
	r.namespace = ns
	r.router.invalidate()
	return r
}

// Path adds a matcher for the URL path. The template may contain
// {name} and {name:type} parameters.
func (r *Route) Path(tpl string) *Route {
	return r.setPath(tpl, kindPath)
}

// PathPrefix adds a matcher for the URL path prefix. The prefix matches on
// segment boundaries only: "/users" matches "/users" and "/users/1" but
// not "/usersx".
func (r *Route) PathPrefix(tpl string) *Route {
	return r.setPath(tpl, kindPrefix)
}

func (r *Route) setPath(tpl string, kind patternKind) *Route {
	if r.path != nil {
		return r.setErr(fmt.Errorf("mux: route %s already has a path", r.describe()))
	}
	p, err := compilePattern(tpl, kind)
	if err != nil {
		return r.setErr(err)
	}
	if r.host != nil {
		if err := uniqueVars(r.host.params, p.params); err != nil {
			return r.setErr(err)
		}
	}
	r.path = p
	r.router.invalidate()
	return r
}

// Host adds a matcher for the request host. The port is ignored.
func (r *Route) Host(tpl string) *Route {
	if tpl == "" {
		return r.setErr(errors.New("mux: empty host template"))
	}
	if r.host != nil {
		return r.setErr(fmt.Errorf("mux: route %s already has a host", r.describe()))
	}
	p, err := compilePattern(tpl, kindHost)
	if err != nil {
		return r.setErr(err)
	}
	if r.path != nil {
		if err := uniqueVars(p.params, r.path.params); err != nil {
			return r.setErr(err)
		}
	}
	r.host = p
	r.router.invalidate()
	return r
}

// Methods restricts the route to the given HTTP methods. A route without
// methods accepts all of them. Chained calls replace earlier methods.
func (r *Route) Methods(methods ...string) *Route {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" {
			return r.setErr(errors.New("mux: empty method"))
		}
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	r.methods = out
	r.router.invalidate()
	return r
}

// Headers adds a matcher for request header values per RFC 9110 Section 5.
// It accepts pairs of header names and values. The value can be empty,
// in which case the matcher will only check for the header presence.
func (r *Route) Headers(pairs ...string) *Route {
	m, err := mapFromPairsToString(pairs...)
	if err != nil {
		return r.setErr(err)
	}
	return r.MatcherFunc(func(req *http.Request) bool {
		return matchMapWithString(m, req.Header, true)
	})
}

// Schemes adds a matcher for URL schemes.
func (r *Route) Schemes(schemes ...string) *Route {
	for i, s := range schemes {
		schemes[i] = strings.ToLower(s)
	}
	return r.MatcherFunc(func(req *http.Request) bool {
		return slices.Contains(schemes, requestScheme(req))
	})
}

// MatcherFunc adds a custom function to be used as request matcher.
func (r *Route) MatcherFunc(f MatcherFunc) *Route {
	if f == nil {
		return r.setErr(errors.New("mux: nil matcher"))
	}
	r.matchers = append(r.matchers, f)
	r.router.invalidate()
	return r
}

// Use appends route level middleware.
func (r *Route) Use(mws ...Middleware) *Route {
	r.use(mws)
	r.router.invalidate()
	return r
}

// Permissions appends route level permissions. They run inside the route's
// middleware.
func (r *Route) Permissions(perms ...Permission) *Route {
	r.permit(perms)
	r.router.invalidate()
	return r
}

// ErrorHandlers merges eh into the route's exception layer.
func (r *Route) ErrorHandlers(eh *ErrorHandlers) *Route {
	r.handleErrors(eh)
	r.router.invalidate()
	return r
}

// Dependencies adds route level dependencies.
func (r *Route) Dependencies(deps Dependencies) *Route {
	r.provide(deps)
	r.router.invalidate()
	return r
}

// Subrouter creates a router mounted on this route. Paths of its routes are
// matched against what remains after this route's prefix.
func (r *Route) Subrouter() *Router {
	sub := newRouter()
	sub.skipClean = r.router.skipClean
	sub.useEncodedPath = r.router.useEncodedPath
	r.mount(sub)
	return sub
}

func (r *Route) mount(sub *Router) {
	switch {
	case r.handler != nil:
		r.setErr(fmt.Errorf("mux: route %s already has a handler", r.describe()))
	case r.sub != nil:
		r.setErr(fmt.Errorf("mux: route %s already has a subrouter", r.describe()))
	case sub.parent != nil:
		r.setErr(fmt.Errorf("mux: router is already mounted on %s", sub.parent.describe()))
	case r.path != nil && r.path.kind == kindPath:
		r.setErr(fmt.Errorf("mux: route %s must use PathPrefix to mount a router", r.describe()))
	default:
		sub.parent = r
		r.sub = sub
		r.router.invalidate()
	}
}

// --- URL building ---

// URL builds a URL for the route from name/value pairs.
//
//	u, err := r.Get("article").URL("category", "tech", "id", 42)
func (r *Route) URL(pairs ...any) (*url.URL, error) {
	values, err := mapFromPairs(pairs...)
	if err != nil {
		return nil, err
	}
	chain := []*Route{r}
	top := r.router
	for top.parent != nil {
		chain = append(chain, top.parent)
		top = top.parent.router
	}
	slices.Reverse(chain)
	return top.buildURL(chain, values)
}

// URLPath builds the path part of the route URL.
func (r *Route) URLPath(pairs ...any) (*url.URL, error) {
	u, err := r.URL(pairs...)
	if err != nil {
		return nil, err
	}
	return &url.URL{Path: u.Path}, nil
}

// --- Inspection ---

// GetPathTemplate returns the template for the route path, if defined.
func (r *Route) GetPathTemplate() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.path == nil {
		return "", errors.New("mux: route doesn't have a path")
	}
	return r.path.template, nil
}

// GetFullPathTemplate returns the path template including the prefixes of
// every route the route is mounted under.
func (r *Route) GetFullPathTemplate() string {
	var parts []string
	for rt := r; rt != nil; rt = rt.router.parent {
		if rt.path != nil {
			parts = append(parts, rt.path.template)
		}
	}
	slices.Reverse(parts)
	full := strings.Join(parts, "")
	if full == "" {
		return "/"
	}
	return full
}

// GetPathRegexp returns the compiled regexp for the route path, if defined.
func (r *Route) GetPathRegexp() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.path == nil {
		return "", errors.New("mux: route doesn't have a path")
	}
	return r.path.regexp.String(), nil
}

// GetHostTemplate returns the template for the route host, if defined.
func (r *Route) GetHostTemplate() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.host == nil {
		return "", errors.New("mux: route doesn't have a host")
	}
	return r.host.template, nil
}

// GetMethods returns the methods the route matches against.
func (r *Route) GetMethods() ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.methods == nil {
		return nil, errors.New("mux: route doesn't have methods")
	}
	return slices.Clone(r.methods), nil
}

// GetParamNames returns the parameter names of the host and path templates.
func (r *Route) GetParamNames() ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	var names []string
	if r.host != nil {
		names = append(names, r.host.params...)
	}
	if r.path != nil {
		names = append(names, r.path.params...)
	}
	return names, nil
}

// GetSubrouter returns the router mounted on the route, if any.
func (r *Route) GetSubrouter() *Router {
	return r.sub
}

// GetError returns any error that was set on the route.
func (r *Route) GetError() error {
	return r.err
}
