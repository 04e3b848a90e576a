package muxhandlers

import (
	"net/http"

	"github.com/vitalvas/lilya/mux"
)

// unmatchedRoute labels requests that match no route.
const unmatchedRoute = "<unmatched>"

// routeTemplate returns the full path template of the route serving r.
// Inside a router the current route is known; outside it, router is
// asked to match the request.
func routeTemplate(router *mux.Router, r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil && router != nil {
		var m mux.RouteMatch
		if router.Match(r, &m) {
			route = m.Route
		}
	}
	if route == nil {
		return unmatchedRoute
	}
	if tpl := route.GetFullPathTemplate(); tpl != "" {
		return tpl
	}
	return unmatchedRoute
}
