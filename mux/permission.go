package mux

import "net/http"

// Permission decides whether a request may proceed. A nil result allows it;
// an error is raised into the error path of the stack.
type Permission func(*http.Request) error

// Wrap implements Middleware, so a Permission can also be used as one.
func (p Permission) Wrap(next Endpoint) Endpoint {
	return guard([]Permission{p}, next)
}

// Allow adapts a predicate. A false result is ErrPermissionDenied.
func Allow(pred func(*http.Request) bool) Permission {
	return func(r *http.Request) error {
		if pred(r) {
			return nil
		}
		return ErrPermissionDenied
	}
}

// guard runs perms in order before next. The first failure stops the chain.
func guard(perms []Permission, next Endpoint) Endpoint {
	if len(perms) == 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		for _, p := range perms {
			if err := p(r); err != nil {
				return err
			}
		}
		return next(w, r)
	}
}
