package muxhandlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/vitalvas/lilya/mux"
)

// ErrNoAuthSource is returned when BasicAuthConfig has neither
// ValidateFunc nor Credentials.
var ErrNoAuthSource = errors.New("basic auth: at least one of ValidateFunc or Credentials must be set")

// BasicAuthConfig configures Basic authentication.
//
// Reference: https://www.rfc-editor.org/rfc/rfc7617
type BasicAuthConfig struct {
	// Realm is sent in the WWW-Authenticate challenge. Defaults to
	// "Restricted".
	Realm string

	// ValidateFunc validates credentials. Takes priority over Credentials.
	ValidateFunc func(username, password string) bool

	// Credentials maps user names to passwords, compared in constant time.
	Credentials map[string]string
}

// BasicAuth returns a permission requiring valid Basic credentials. A
// failure raises 401 Unauthorized carrying the WWW-Authenticate challenge,
// so exception handlers registered for 401 can render it.
func BasicAuth(cfg BasicAuthConfig) (mux.Permission, error) {
	if cfg.ValidateFunc == nil && len(cfg.Credentials) == 0 {
		return nil, ErrNoAuthSource
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "Restricted"
	}
	header := fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", realm)

	// A fresh error per request, since handlers may modify its headers.
	challenge := func() error {
		return mux.Unauthorized("").WithHeader("WWW-Authenticate", header)
	}

	return func(r *http.Request) error {
		username, password, ok := r.BasicAuth()
		if !ok {
			return challenge()
		}

		if cfg.ValidateFunc != nil {
			if !cfg.ValidateFunc(username, password) {
				return challenge()
			}
			return nil
		}

		expected, exists := cfg.Credentials[username]
		// Compare even for unknown users so timing does not reveal them.
		if !constantTimeEqual(password, expected) || !exists {
			return challenge()
		}
		return nil
	}, nil
}

// constantTimeEqual compares SHA-256 digests so that length differences
// do not leak either.
func constantTimeEqual(a, b string) bool {
	aHash := sha256.Sum256([]byte(a))
	bHash := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(aHash[:], bHash[:]) == 1
}
