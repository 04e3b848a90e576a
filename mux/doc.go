// Package mux implements the router and request stack of a lilya
// application.
//
// The package implements routing semantics based on:
//   - RFC 9110 (HTTP Semantics)
//   - RFC 3986 (URIs)
//   - RFC 7538 (308 Permanent Redirect)
//
// # Router
//
// Handlers are Endpoints: functions that return an error instead of
// writing one. Create a router and register them:
//
//	r := mux.NewRouter()
//	r.HandleFunc("/articles/{category}/{id:int}", showArticle).Methods(http.MethodGet)
//	http.Handle("/", r)
//
// # Path Parameters
//
// Templates hold {name} or {name:type} placeholders. The type names a
// registered Converter; str is the default:
//
//	str      - one path segment
//	path     - the rest of the path, slashes included
//	int      - unsigned integer, converted to int
//	float    - unsigned decimal, converted to float64
//	uuid     - RFC 4122 UUID, converted to uuid.UUID
//	slug     - URL-safe slug (e.g. my-post-title)
//	date     - ISO 8601 date, converted to time.Time
//	datetime - ISO 8601 date and time, converted to time.Time
//	hex      - hexadecimal string
//	domain   - domain name per RFC 1123
//
// An unknown type is a configuration error. Converted values are read with
// Param; raw strings with Vars and VarGet:
//
//	id, ok := mux.Param[int](r, "id")
//	category := mux.Vars(r)["category"]
//
// RegisterConverter adds custom types.
//
// # Matching
//
// Routes are tried in declaration order. Each yields one of MatchFull,
// MatchPartial (path matches, method does not) or MatchNone. The first full
// match wins. When only partial matches exist the router raises a 405 whose
// Allow header lists the union of their methods; when nothing matches, a
// 404. GET routes also serve HEAD.
//
// With RedirectSlashes (on by default) a request that does not match but
// would with its trailing slash toggled is redirected with 308.
//
// # Includes
//
// Routers nest under a path prefix. The prefix is stripped before the inner
// router matches, and prefix parameters are merged with inner ones:
//
//	users := mux.NewRouter()
//	users.HandleFunc("/{id:int}", showUser).Name("detail")
//	r.Include("/tenants/{tenant}/users", users).Namespace("users")
//
//	u, _ := r.URLFor("users:detail", map[string]any{"tenant": "acme", "id": 7})
//
// # Stacks
//
// Middleware, permissions, error handlers and dependencies can be declared
// on routes and routers. For every level the layers are
//
//	errorHandlers(middleware(permissions(inner)))
//
// with the route's own level innermost and each router (and the route that
// mounts it) further out. Stacks are composed once by Build, which also
// reports every configuration error of the tree. ServeHTTP builds lazily
// and panics on an invalid configuration.
//
// # Errors
//
// An error returned by an Endpoint travels outward through the exception
// layers. ErrorHandlers resolves it by walking the error chain: concrete
// type, then interface, then sentinel, for each wrapped error in turn, and
// finally by HTTP status code. Unhandled errors reach the caller of the
// outermost Endpoint; Endpoint.ServeHTTP renders them with RenderError.
//
// An error surfacing after the response has started cannot be rendered:
// exception layers report ErrResponseStarted instead.
//
// # Walking Routes
//
// Walk traverses the router and all its subrouters, calling a function for
// each registered route. Return SkipRouter to skip descending into a
// subrouter.
package mux
