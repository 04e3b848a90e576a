package websocket

import (
	"errors"
	"net/http"

	"golang.org/x/net/http/httpguts"

	"github.com/vitalvas/lilya/mux"
)

// IsUpgrade reports whether r asks for a WebSocket upgrade per RFC 6455,
// section 4.2.1.
func IsUpgrade(r *http.Request) bool {
	return httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade") &&
		httpguts.HeaderValuesContainsToken(r.Header["Upgrade"], "websocket")
}

// Handler returns an Endpoint running fn for every upgrade request.
//
// Requests without an upgrade get 426 Upgrade Required. When fn returns
// and the application side is still connected, the session is closed with
// StatusNormalClosure if fn returned nil and StatusInternalError otherwise.
// The error of fn is returned to the enclosing stack.
func Handler(fn func(*Socket) error, opts Options) mux.Endpoint {
	return func(w http.ResponseWriter, r *http.Request) error {
		if !IsUpgrade(r) {
			return mux.NewHTTPError(http.StatusUpgradeRequired, "").
				WithHeader("Upgrade", "websocket").
				WithHeader("Connection", "Upgrade")
		}

		s := NewSocket(w, r, opts)
		err := fn(s)

		switch s.ApplicationState() {
		case Connecting:
			// fn never accepted; reject the handshake unless it failed
			// with an error the stack can still render.
			if err == nil {
				return s.Close(StatusPolicyViolation, "")
			}
		case Connected:
			code, reason := StatusNormalClosure, ""
			if err != nil {
				code, reason = StatusInternalError, "internal error"
			}
			err = errors.Join(err, s.Close(code, reason))
		}
		return err
	}
}
