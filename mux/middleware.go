package mux

import (
	"context"
	"net/http"
	"strings"
)

// Endpoint is an HTTP handler that reports failure by returning an error.
// Errors travel outward through the exception layers of the stack.
type Endpoint func(w http.ResponseWriter, r *http.Request) error

// ServeHTTP implements http.Handler. A returned error is rendered with
// RenderError; if the response has already started the request is aborted.
func (e Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)
	if err := e(rw, r); err != nil {
		if rw.Written() {
			panic(http.ErrAbortHandler)
		}
		RenderError(rw, r, err)
	}
}

// HandlerEndpoint adapts an http.Handler. The result never returns an error.
func HandlerEndpoint(h http.Handler) Endpoint {
	if e, ok := h.(Endpoint); ok {
		return e
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		h.ServeHTTP(w, r)
		return nil
	}
}

// Middleware wraps an Endpoint into another Endpoint.
type Middleware interface {
	Wrap(next Endpoint) Endpoint
}

// EndpointMiddleware is a Middleware written against Endpoint.
type EndpointMiddleware func(next Endpoint) Endpoint

// Wrap implements Middleware.
func (m EndpointMiddleware) Wrap(next Endpoint) Endpoint {
	return m(next)
}

// MiddlewareFunc is standard net/http middleware. Errors returned by inner
// layers bypass the http.Handler chain and are returned from the wrapped
// Endpoint once the middleware returns.
type MiddlewareFunc func(http.Handler) http.Handler

// Middleware allows MiddlewareFunc to be applied to a plain http.Handler.
func (mw MiddlewareFunc) Middleware(handler http.Handler) http.Handler {
	return mw(handler)
}

type errorSlotKey struct{}

// Wrap implements Middleware. The http.Handler chain is built once.
func (mw MiddlewareFunc) Wrap(next Endpoint) Endpoint {
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := next(w, r)
		if err == nil {
			return
		}
		if slot, ok := r.Context().Value(errorSlotKey{}).(*error); ok {
			*slot = err
			return
		}
		RenderError(w, r, err)
	}))
	return func(w http.ResponseWriter, r *http.Request) error {
		var err error
		h.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), errorSlotKey{}, &err)))
		return err
	}
}

// Chain wraps h so that mws[0] sees the request first and the response last.
func Chain(h Endpoint, mws ...Middleware) Endpoint {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i].Wrap(h)
	}
	return h
}

// isNilMiddleware catches nil interfaces and nil function values.
func isNilMiddleware(m Middleware) bool {
	switch x := m.(type) {
	case nil:
		return true
	case MiddlewareFunc:
		return x == nil
	case EndpointMiddleware:
		return x == nil
	case Permission:
		return x == nil
	}
	return false
}

// CORSMethodMiddleware sets the Access-Control-Allow-Methods response header
// to the methods registered for the path of the request.
func CORSMethodMiddleware(r *Router) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if methods := r.AllowedMethods(req); len(methods) > 0 {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ","))
			}
			next.ServeHTTP(w, req)
		})
	}
}
