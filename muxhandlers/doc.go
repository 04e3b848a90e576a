// Package muxhandlers provides reusable middleware and permissions for
// mux routers and applications.
//
// Middleware that only decorates the response is a mux.MiddlewareFunc.
// Middleware that must observe or raise errors is a mux.EndpointMiddleware,
// so errors travel through the exception layers instead of being written
// directly. Constructors taking configuration that can be invalid return an
// error.
//
// # CORS Middleware
//
// CORSMiddleware implements the CORS protocol per the Fetch Standard and
// answers preflight requests itself. Install it at the application level
// so preflight requests never reach routing:
//
//	cors, err := muxhandlers.CORSMiddleware(muxhandlers.CORSConfig{
//	    AllowedOrigins:   []string{"https://example.com"},
//	    AllowCredentials: true,
//	    Router:           router,
//	})
//
// # Basic Auth Permission
//
// BasicAuth returns a mux.Permission implementing RFC 7617. Rejected
// requests raise a 401 mux.HTTPError carrying the WWW-Authenticate
// challenge:
//
//	perm, err := muxhandlers.BasicAuth(muxhandlers.BasicAuthConfig{
//	    Realm:       "Admin",
//	    Credentials: map[string]string{"admin": "secret"},
//	})
//	r.PathPrefix("/admin").Subrouter().Permissions(perm)
//
// # Observability
//
// RequestLoggerMiddleware and MetricsMiddleware label requests with the
// template of the matched route. Inside a router the route is known; at the
// application level set the Router field so the request can be matched.
package muxhandlers
