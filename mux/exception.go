package mux

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
)

// ErrorHandler renders err. Returning a non-nil error passes it on to the
// next outer exception layer.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error) error

type ifaceHandler struct {
	typ     reflect.Type
	handler ErrorHandler
}

type targetHandler struct {
	target  error
	handler ErrorHandler
}

// ErrorHandlers maps errors to handlers by concrete type, by interface,
// by sentinel value and by HTTP status code.
//
// Lookup walks the error chain depth first (errors.Unwrap and joined
// errors). For each link it tries the concrete type, then registered
// interfaces in registration order, then sentinels. Only when no link has a
// handler is the status code of the chain consulted.
type ErrorHandlers struct {
	types    map[reflect.Type]ErrorHandler
	ifaces   []ifaceHandler
	targets  []targetHandler
	statuses map[int]ErrorHandler
	errs     []error
}

// NewErrorHandlers returns an empty registry.
func NewErrorHandlers() *ErrorHandlers {
	return &ErrorHandlers{
		types:    make(map[reflect.Type]ErrorHandler),
		statuses: make(map[int]ErrorHandler),
	}
}

// Type registers h for errors with the same concrete type as sample.
func (e *ErrorHandlers) Type(sample error, h ErrorHandler) *ErrorHandlers {
	if sample == nil {
		e.errs = append(e.errs, errors.New("mux: nil sample error for type handler"))
		return e
	}
	if h == nil {
		e.errs = append(e.errs, fmt.Errorf("mux: nil handler for %T", sample))
		return e
	}
	e.types[reflect.TypeOf(sample)] = h
	return e
}

// Is registers h for errors matching target under errors.Is semantics.
func (e *ErrorHandlers) Is(target error, h ErrorHandler) *ErrorHandlers {
	if target == nil || h == nil {
		e.errs = append(e.errs, fmt.Errorf("mux: nil target or handler for sentinel %v", target))
		return e
	}
	e.targets = append(e.targets, targetHandler{target: target, handler: h})
	return e
}

// Status registers h for errors whose chain carries the status code.
func (e *ErrorHandlers) Status(code int, h ErrorHandler) *ErrorHandlers {
	if code < 100 || code > 599 {
		e.errs = append(e.errs, fmt.Errorf("mux: invalid status code %d", code))
		return e
	}
	if h == nil {
		e.errs = append(e.errs, fmt.Errorf("mux: nil handler for status %d", code))
		return e
	}
	e.statuses[code] = h
	return e
}

// HandleType registers a typed handler for E. Concrete types are matched
// exactly; interface types are matched by implementation. The handler
// receives the first link of the chain that is an E.
func HandleType[E error](e *ErrorHandlers, h func(http.ResponseWriter, *http.Request, E) error) *ErrorHandlers {
	if h == nil {
		e.errs = append(e.errs, fmt.Errorf("mux: nil handler for %s", reflect.TypeFor[E]()))
		return e
	}
	adapted := func(w http.ResponseWriter, r *http.Request, err error) error {
		var target E
		if !errors.As(err, &target) {
			return err
		}
		return h(w, r, target)
	}
	typ := reflect.TypeFor[E]()
	if typ.Kind() == reflect.Interface {
		e.ifaces = append(e.ifaces, ifaceHandler{typ: typ, handler: adapted})
	} else {
		e.types[typ] = adapted
	}
	return e
}

// Interface registers h for any error implementing I.
func Interface[I any](e *ErrorHandlers, h ErrorHandler) *ErrorHandlers {
	typ := reflect.TypeFor[I]()
	if typ.Kind() != reflect.Interface {
		e.errs = append(e.errs, fmt.Errorf("mux: %s is not an interface type", typ))
		return e
	}
	if h == nil {
		e.errs = append(e.errs, fmt.Errorf("mux: nil handler for %s", typ))
		return e
	}
	e.ifaces = append(e.ifaces, ifaceHandler{typ: typ, handler: h})
	return e
}

// Merge returns a new registry holding e's handlers overridden by other's.
func (e *ErrorHandlers) Merge(other *ErrorHandlers) *ErrorHandlers {
	out := NewErrorHandlers()
	for _, src := range []*ErrorHandlers{e, other} {
		if src == nil {
			continue
		}
		for k, v := range src.types {
			out.types[k] = v
		}
		for k, v := range src.statuses {
			out.statuses[k] = v
		}
		out.errs = append(out.errs, src.errs...)
	}
	if other != nil {
		out.ifaces = append(out.ifaces, other.ifaces...)
		out.targets = append(out.targets, other.targets...)
	}
	if e != nil {
		out.ifaces = append(out.ifaces, e.ifaces...)
		out.targets = append(out.targets, e.targets...)
	}
	return out
}

// Err reports registration mistakes.
func (e *ErrorHandlers) Err() error {
	if e == nil {
		return nil
	}
	return errors.Join(e.errs...)
}

// Lookup returns the handler for err, or nil.
func (e *ErrorHandlers) Lookup(err error) ErrorHandler {
	if e == nil || err == nil {
		return nil
	}
	var found ErrorHandler
	walkChain(err, func(link error) bool {
		found = e.lookupLink(link)
		return found != nil
	})
	if found != nil {
		return found
	}
	if code, ok := statusOf(err); ok {
		return e.statuses[code]
	}
	return nil
}

func (e *ErrorHandlers) lookupLink(link error) ErrorHandler {
	typ := reflect.TypeOf(link)
	if h, ok := e.types[typ]; ok {
		return h
	}
	for _, ih := range e.ifaces {
		if typ.Implements(ih.typ) {
			return ih.handler
		}
	}
	for _, th := range e.targets {
		if typ.Comparable() && link == th.target {
			return th.handler
		}
		if x, ok := link.(interface{ Is(error) bool }); ok && x.Is(th.target) {
			return th.handler
		}
	}
	return nil
}

// Wrap returns an exception layer around next. Errors with a handler are
// handled; others propagate. When the response has already started the
// layer returns ErrResponseStarted wrapping the original error instead of
// running the handler.
func (e *ErrorHandlers) Wrap(next Endpoint) Endpoint {
	return func(w http.ResponseWriter, r *http.Request) error {
		err := next(w, r)
		if err == nil || errors.Is(err, ErrResponseStarted) {
			return err
		}
		h := e.Lookup(err)
		if h == nil {
			return err
		}
		if ResponseStarted(w) {
			return fmt.Errorf("%w: %w", ErrResponseStarted, err)
		}
		return h(w, r, err)
	}
}

// walkChain visits err and its wrapped errors depth first until visit
// returns true.
func walkChain(err error, visit func(error) bool) bool {
	for err != nil {
		if visit(err) {
			return true
		}
		switch x := err.(type) {
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				if walkChain(inner, visit) {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
	return false
}

// HandleHTTPError renders HTTPErrors and passes other errors on.
func HandleHTTPError(w http.ResponseWriter, r *http.Request, err error) error {
	var he *HTTPError
	if !errors.As(err, &he) {
		return err
	}
	RenderError(w, r, he)
	return nil
}
