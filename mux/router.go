package mux

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Router registers routes to be matched and dispatches a handler.
//
// It implements the http.Handler interface, so it can be registered to serve
// requests:
//
//	r := mux.NewRouter()
//	r.HandleFunc("/users/{id:int}", showUser).Methods(http.MethodGet)
//	http.ListenAndServe(":8080", r)
//
// Every route's stack of middleware, permissions and exception layers is
// composed once by Build, which also reports configuration errors.
type Router struct {
	layers

	// NotFoundHandler is called when no route matches.
	// If nil, a 404 HTTPError wrapping ErrNotFound is raised.
	NotFoundHandler http.Handler

	// MethodNotAllowedHandler is called when a route matches the path
	// but not the method. If nil, a 405 HTTPError is raised. The Allow
	// header is set before either runs.
	MethodNotAllowedHandler http.Handler

	parent *Route
	routes []*Route

	rootPath        string
	redirectSlashes bool
	skipClean       bool
	useEncodedPath  bool

	mu    sync.Mutex
	built atomic.Pointer[builtRouter]
}

type builtRouter struct {
	endpoint Endpoint
	err      error
}

// NewRouter returns a new router instance with slash redirects enabled.
func NewRouter() *Router {
	r := newRouter()
	r.redirectSlashes = true
	return r
}

func newRouter() *Router {
	return &Router{}
}

// ServeHTTP dispatches the request to the matched route's stack. It builds
// the router on first use and panics if the configuration is invalid.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if err := r.Build(); err != nil {
		panic(err)
	}
	r.Endpoint().ServeHTTP(w, req)
}

// Endpoint returns the router as an Endpoint, for use inside an outer stack.
// A build error is returned to the caller on every request.
func (r *Router) Endpoint() Endpoint {
	return func(w http.ResponseWriter, req *http.Request) error {
		if err := r.Build(); err != nil {
			return err
		}
		return r.built.Load().endpoint(w, req)
	}
}

// Build validates the configuration of the router tree and composes the
// stack of every route. It is idempotent until the router is modified.
func (r *Router) Build() error {
	if b := r.built.Load(); b != nil {
		return b.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b := r.built.Load(); b != nil {
		return b.err
	}

	b := &builtRouter{}
	if b.err = r.validate(); b.err == nil {
		r.buildStacks(r)
		b.endpoint = r.dispatch
		if r.errorHandlers != nil {
			b.endpoint = r.errorHandlers.Wrap(b.endpoint)
		}
	}
	r.built.Store(b)
	return b.err
}

// invalidate drops built stacks of r and every router above it.
func (r *Router) invalidate() {
	for router := r; router != nil; {
		router.built.Store(nil)
		if router.parent == nil {
			return
		}
		router = router.parent.router
	}
}

// dispatch matches the request and runs the matched stack.
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) error {
	req, path := r.prepare(req)

	var match RouteMatch
	match.Result = r.search(req, path, getHost(req), &match)

	switch match.Result {
	case MatchFull:
		return match.Route.stack(w, setRouteContext(req, &match))

	case MatchPartial:
		if r.MethodNotAllowedHandler != nil {
			w.Header().Set("Allow", strings.Join(match.Allowed, ", "))
			r.MethodNotAllowedHandler.ServeHTTP(w, req)
			return nil
		}
		return MethodNotAllowed(match.Allowed)
	}

	if r.redirectSlashes && path != "/" {
		target := toggleTrailingSlash(path)
		if r.search(req, target, getHost(req), &RouteMatch{}) != MatchNone {
			u := url.URL{Path: r.rootPath + target, RawQuery: req.URL.RawQuery}
			// 308 keeps the method, unlike 301 (RFC 7538 Section 3).
			http.Redirect(w, req, u.String(), http.StatusPermanentRedirect)
			return nil
		}
	}

	if r.NotFoundHandler != nil {
		r.NotFoundHandler.ServeHTTP(w, req)
		return nil
	}
	return NotFound("").Wrap(ErrNotFound)
}

// prepare cleans the request path and strips the root path. It returns the
// possibly cloned request and the path used for matching.
func (r *Router) prepare(req *http.Request) (*http.Request, string) {
	path := req.URL.Path
	if r.useEncodedPath {
		path = requestURIPath(req.URL)
	}

	// Remove dot segments (RFC 3986 Section 5.2.4) unless SkipClean is set.
	if !r.skipClean {
		if cleaned := cleanPath(path); cleaned != path {
			u := *req.URL
			u.Path = cleaned
			u.RawPath = ""
			req = req.Clone(req.Context())
			req.URL = &u
			path = cleaned
		}
	}

	if r.rootPath != "" && hasSegmentPrefix(path, r.rootPath) {
		path = path[len(r.rootPath):]
		if path == "" {
			path = "/"
		}
	}
	return req, path
}

// search runs the routes in declaration order. The first full match wins;
// otherwise the result is partial if any route matched partially.
func (r *Router) search(req *http.Request, path, host string, m *RouteMatch) Match {
	partial := false
	for _, route := range r.routes {
		switch route.search(req, path, host, m) {
		case MatchFull:
			m.Result = MatchFull
			return MatchFull
		case MatchPartial:
			partial = true
		}
	}
	if partial {
		slices.Sort(m.Allowed)
		m.Allowed = slices.Compact(m.Allowed)
		m.Result = MatchPartial
		return MatchPartial
	}
	m.Result = MatchNone
	return MatchNone
}

// Match attempts to match the request against the router's routes without
// dispatching. It reports whether the match is full; match carries the
// three-valued result and, on a partial match, the allowed methods.
func (r *Router) Match(req *http.Request, match *RouteMatch) bool {
	req, path := r.prepare(req)
	return r.search(req, path, getHost(req), match) == MatchFull
}

// AllowedMethods returns the methods accepted by routes matching the path
// of req, regardless of its method. It returns nil when the path matches
// no route or matches a route accepting every method.
func (r *Router) AllowedMethods(req *http.Request) []string {
	probe := req.Clone(req.Context())
	// No route registers this method, so every path match is partial.
	probe.Method = "\x00"
	var m RouteMatch
	if !r.Match(probe, &m) && m.Result == MatchPartial {
		return m.Allowed
	}
	return nil
}

// --- Options ---

// RootPath sets a path prefix stripped from requests before matching and
// prepended to built URLs, for applications served under a sub-path.
func (r *Router) RootPath(p string) *Router {
	p = strings.TrimSuffix(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		r.errs = append(r.errs, fmt.Errorf("mux: root path %q must start with a slash", p))
		return r
	}
	r.rootPath = p
	r.invalidate()
	return r
}

// GetRootPath returns the root path.
func (r *Router) GetRootPath() string {
	return r.rootPath
}

// RedirectSlashes controls whether a request that does not match is
// redirected with 308 to the same path with the trailing slash toggled,
// when that path matches.
func (r *Router) RedirectSlashes(value bool) *Router {
	r.redirectSlashes = value
	return r
}

// SkipClean defines the path cleaning behavior for new routes.
// When true, the path will not be cleaned (path.Clean will not be called).
func (r *Router) SkipClean(value bool) *Router {
	r.skipClean = value
	return r
}

// UseEncodedPath tells the router to match the percent-encoded original path
// (RFC 3986 Section 2.1) to the routes, instead of the decoded path.
func (r *Router) UseEncodedPath() *Router {
	r.useEncodedPath = true
	return r
}

// Use appends router level middleware. It wraps every route below the
// router, outside the routes' own levels.
func (r *Router) Use(mws ...Middleware) *Router {
	r.use(mws)
	r.invalidate()
	return r
}

// Permissions appends router level permissions.
func (r *Router) Permissions(perms ...Permission) *Router {
	r.permit(perms)
	r.invalidate()
	return r
}

// ErrorHandlers merges eh into the router's exception layer.
func (r *Router) ErrorHandlers(eh *ErrorHandlers) *Router {
	r.handleErrors(eh)
	r.invalidate()
	return r
}

// Dependencies adds router level dependencies.
func (r *Router) Dependencies(deps Dependencies) *Router {
	r.provide(deps)
	r.invalidate()
	return r
}

// --- Route factory methods ---

// NewRoute creates an empty route for configuration.
func (r *Router) NewRoute() *Route {
	route := &Route{router: r}
	r.routes = append(r.routes, route)
	r.invalidate()
	return route
}

// Handle registers a new route with a matcher for the URL path and a plain
// http.Handler.
func (r *Router) Handle(path string, handler http.Handler) *Route {
	return r.NewRoute().Path(path).Handler(handler)
}

// HandleFunc registers a new route with a matcher for the URL path and an
// Endpoint.
func (r *Router) HandleFunc(path string, f Endpoint) *Route {
	return r.NewRoute().Path(path).HandlerFunc(f)
}

// Path registers a new route with a matcher for the URL path.
func (r *Router) Path(tpl string) *Route {
	return r.NewRoute().Path(tpl)
}

// PathPrefix registers a new route with a matcher for the URL path prefix.
func (r *Router) PathPrefix(tpl string) *Route {
	return r.NewRoute().PathPrefix(tpl)
}

// Host registers a new route with a matcher for the URL host.
func (r *Router) Host(tpl string) *Route {
	return r.NewRoute().Host(tpl)
}

// Methods registers a new route with a matcher for HTTP methods.
func (r *Router) Methods(methods ...string) *Route {
	return r.NewRoute().Methods(methods...)
}

// MatcherFunc registers a new route with a custom matcher function.
func (r *Router) MatcherFunc(f MatcherFunc) *Route {
	return r.NewRoute().MatcherFunc(f)
}

// Include mounts an existing router under prefix. A router can be mounted
// once.
func (r *Router) Include(prefix string, sub *Router) *Route {
	route := r.NewRoute().PathPrefix(prefix)
	if sub == nil {
		return route.setErr(errors.New("mux: nil router"))
	}
	route.mount(sub)
	return route
}

// Get returns the route registered with the given name, resolving
// "namespace:name" through included routers.
func (r *Router) Get(name string) *Route {
	chain := r.lookup(name)
	if len(chain) == 0 {
		return nil
	}
	return chain[len(chain)-1]
}

// GetRoute returns a route registered with the given name (alias for Get).
func (r *Router) GetRoute(name string) *Route {
	return r.Get(name)
}

// lookup returns the mounting routes and the named leaf, outermost first.
func (r *Router) lookup(name string) []*Route {
	ns, rest, scoped := strings.Cut(name, ":")
	for _, route := range r.routes {
		switch {
		case scoped && route.sub != nil && route.namespace == ns:
			if chain := route.sub.lookup(rest); chain != nil {
				return append([]*Route{route}, chain...)
			}
		case !scoped && route.name == name:
			return []*Route{route}
		case route.sub != nil && route.namespace == "":
			if chain := route.sub.lookup(name); chain != nil {
				return append([]*Route{route}, chain...)
			}
		}
	}
	return nil
}

// URLFor builds the URL of the named route. Every parameter of the
// templates along the way must be supplied, and no others.
//
//	u, err := r.URLFor("users:detail", map[string]any{"id": 42})
func (r *Router) URLFor(name string, params map[string]any) (*url.URL, error) {
	chain := r.lookup(name)
	if chain == nil {
		return nil, fmt.Errorf("mux: no route named %q", name)
	}
	return r.buildURL(chain, params)
}

// buildURL renders chain (outermost first) below r's root path.
func (r *Router) buildURL(chain []*Route, params map[string]any) (*url.URL, error) {
	used := make(map[string]bool, len(params))
	var (
		host string
		path strings.Builder
	)
	path.WriteString(r.rootPath)
	for _, route := range chain {
		if route.err != nil {
			return nil, route.err
		}
		if route.host != nil {
			h, err := route.host.build(params, used)
			if err != nil {
				return nil, err
			}
			host = h
		}
		if route.path != nil {
			p, err := route.path.build(params, used)
			if err != nil {
				return nil, err
			}
			path.WriteString(p)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(params)) {
		if !used[k] {
			return nil, fmt.Errorf("mux: unexpected parameter %q for route %s", k, chain[len(chain)-1].describe())
		}
	}

	u := &url.URL{Path: path.String()}
	if u.Path == "" {
		u.Path = "/"
	}
	if host != "" {
		u.Scheme = "http"
		u.Host = host
	}
	return u, nil
}

// Walk walks the router and all its subrouters, calling walkFn for each route
// in the tree.
func (r *Router) Walk(walkFn WalkFunc) error {
	return r.walk(walkFn, nil)
}

func (r *Router) walk(walkFn WalkFunc, ancestors []*Route) error {
	for _, route := range r.routes {
		err := walkFn(route, r, ancestors)
		if errors.Is(err, SkipRouter) {
			continue
		}
		if err != nil {
			return err
		}
		if route.sub != nil {
			if err := route.sub.walk(walkFn, append(slices.Clip(ancestors), route)); err != nil {
				return err
			}
		}
	}
	return nil
}
