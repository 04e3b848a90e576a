package mux

import (
	"fmt"
	"net/http"
)

// Controller method interfaces. A controller implements one or more.
type (
	Getter interface {
		Get(w http.ResponseWriter, r *http.Request) error
	}
	Poster interface {
		Post(w http.ResponseWriter, r *http.Request) error
	}
	Putter interface {
		Put(w http.ResponseWriter, r *http.Request) error
	}
	Patcher interface {
		Patch(w http.ResponseWriter, r *http.Request) error
	}
	Deleter interface {
		Delete(w http.ResponseWriter, r *http.Request) error
	}
	Optioner interface {
		Options(w http.ResponseWriter, r *http.Request) error
	}
)

// Optional class level configuration of a controller. It is applied
// outside anything configured on the returned route.
type (
	MiddlewareProvider interface {
		Middleware() []Middleware
	}
	PermissionProvider interface {
		Permissions() []Permission
	}
	ErrorHandlerProvider interface {
		ErrorHandlers() *ErrorHandlers
	}
	DependencyProvider interface {
		Dependencies() Dependencies
	}
)

// Controller registers c at path. The route's methods are those c
// implements; GET also serves HEAD.
//
//	type users struct{}
//
//	func (users) Get(w http.ResponseWriter, r *http.Request) error { ... }
//	func (users) Post(w http.ResponseWriter, r *http.Request) error { ... }
//
//	r.Controller("/users", users{})
func (r *Router) Controller(path string, c any) *Route {
	route := r.NewRoute().Path(path)
	if c == nil {
		return route.setErr(fmt.Errorf("mux: nil controller for %q", path))
	}

	handlers := controllerMethods(c)
	if len(handlers) == 0 {
		return route.setErr(fmt.Errorf("mux: controller %T implements no HTTP method", c))
	}

	methods := make([]string, 0, len(handlers))
	for _, m := range controllerMethodOrder {
		if _, ok := handlers[m]; ok {
			methods = append(methods, m)
		}
	}
	route.Methods(methods...)

	if p, ok := c.(MiddlewareProvider); ok {
		route.Use(p.Middleware()...)
	}
	if p, ok := c.(PermissionProvider); ok {
		route.Permissions(p.Permissions()...)
	}
	if p, ok := c.(ErrorHandlerProvider); ok {
		if eh := p.ErrorHandlers(); eh != nil {
			route.ErrorHandlers(eh)
		}
	}
	if p, ok := c.(DependencyProvider); ok {
		route.Dependencies(p.Dependencies())
	}

	return route.HandlerFunc(func(w http.ResponseWriter, req *http.Request) error {
		method := req.Method
		if method == http.MethodHead {
			if _, ok := handlers[method]; !ok {
				method = http.MethodGet
			}
		}
		h, ok := handlers[method]
		if !ok {
			return MethodNotAllowed(route.allowedMethods())
		}
		return h(w, req)
	})
}

var controllerMethodOrder = []string{
	http.MethodGet, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

func controllerMethods(c any) map[string]Endpoint {
	m := make(map[string]Endpoint)
	if x, ok := c.(Getter); ok {
		m[http.MethodGet] = x.Get
	}
	if x, ok := c.(Poster); ok {
		m[http.MethodPost] = x.Post
	}
	if x, ok := c.(Putter); ok {
		m[http.MethodPut] = x.Put
	}
	if x, ok := c.(Patcher); ok {
		m[http.MethodPatch] = x.Patch
	}
	if x, ok := c.(Deleter); ok {
		m[http.MethodDelete] = x.Delete
	}
	if x, ok := c.(Optioner); ok {
		m[http.MethodOptions] = x.Options
	}
	return m
}
