package muxhandlers

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/lilya/mux"
)

func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestBasicAuth(t *testing.T) {
	t.Run("config error no auth source", func(t *testing.T) {
		_, err := BasicAuth(BasicAuthConfig{})
		assert.ErrorIs(t, err, ErrNoAuthSource)
	})

	tests := []struct {
		name       string
		config     BasicAuthConfig
		authHeader string
		wantCode   int
	}{
		{
			name:       "valid credentials via ValidateFunc",
			config:     BasicAuthConfig{ValidateFunc: func(u, p string) bool { return u == "admin" && p == "secret" }},
			authHeader: basicAuthHeader("admin", "secret"),
			wantCode:   http.StatusOK,
		},
		{
			name:       "rejected by ValidateFunc",
			config:     BasicAuthConfig{ValidateFunc: func(string, string) bool { return false }},
			authHeader: basicAuthHeader("admin", "secret"),
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "valid credentials via Credentials map",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: basicAuthHeader("admin", "secret"),
			wantCode:   http.StatusOK,
		},
		{
			name:       "invalid password",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: basicAuthHeader("admin", "wrong"),
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "unknown username with empty password",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: basicAuthHeader("ghost", ""),
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:     "missing Authorization header",
			config:   BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:       "not Basic scheme",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: "Bearer some-token",
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "password with colons",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "a:b:c"}},
			authHeader: basicAuthHeader("admin", "a:b:c"),
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perm, err := BasicAuth(tt.config)
			require.NoError(t, err)

			r := mux.NewRouter()
			r.HandleFunc("/private", textEndpoint("ok")).Permissions(perm)

			req := get("/private")
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := do(r, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="Restricted", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))
			} else {
				assert.Equal(t, "ok", w.Body.String())
			}
		})
	}

	t.Run("custom realm and 401 handler", func(t *testing.T) {
		perm, err := BasicAuth(BasicAuthConfig{Realm: "Admin", Credentials: map[string]string{"a": "b"}})
		require.NoError(t, err)

		r := mux.NewRouter()
		r.ErrorHandlers(mux.NewErrorHandlers().Status(http.StatusUnauthorized, func(w http.ResponseWriter, _ *http.Request, err error) error {
			var httpErr *mux.HTTPError
			require.ErrorAs(t, err, &httpErr)
			w.Header().Set("WWW-Authenticate", httpErr.Headers.Get("WWW-Authenticate"))
			w.WriteHeader(http.StatusUnauthorized)
			_, werr := w.Write([]byte("login required"))
			return werr
		}))
		r.HandleFunc("/admin", textEndpoint("ok")).Permissions(perm)

		w := do(r, get("/admin"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "login required", w.Body.String())
		assert.Equal(t, `Basic realm="Admin", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))
	})
}

func TestBasicAuthChallengeIsPerRequest(t *testing.T) {
	perm, err := BasicAuth(BasicAuthConfig{Credentials: map[string]string{"a": "b"}})
	require.NoError(t, err)

	first := perm(get("/"))
	second := perm(get("/"))

	var firstErr, secondErr *mux.HTTPError
	require.ErrorAs(t, first, &firstErr)
	require.ErrorAs(t, second, &secondErr)
	assert.NotSame(t, firstErr, secondErr)

	firstErr.Headers.Set("WWW-Authenticate", "Bearer")
	assert.Equal(t, `Basic realm="Restricted", charset="UTF-8"`, secondErr.Headers.Get("WWW-Authenticate"))
	assert.Equal(t, `Basic realm="Restricted", charset="UTF-8"`, perm(get("/")).(*mux.HTTPError).Headers.Get("WWW-Authenticate"))
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, constantTimeEqual("secret", "secret"))
	assert.False(t, constantTimeEqual("secret", "secreT"))
	assert.False(t, constantTimeEqual("short", "much longer value"))
}
