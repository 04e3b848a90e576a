package app

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/lilya/mux"
	"github.com/vitalvas/lilya/muxhandlers"
)

func TestAppLevelErrors(t *testing.T) {
	t.Run("basic auth permission", func(t *testing.T) {
		perm, err := muxhandlers.BasicAuth(muxhandlers.BasicAuthConfig{
			Realm:       "app",
			Credentials: map[string]string{"admin": "secret"},
		})
		require.NoError(t, err)

		a := New(WithPermissions(perm))
		a.Router().HandleFunc("/", text("ok"))

		w := serve(a, http.MethodGet, "/")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, `Basic realm="app", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))

		creds := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))
		w = serve(a, http.MethodGet, "/", "Authorization", creds)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("status handler sees permission errors", func(t *testing.T) {
		a := New(
			WithPermissions(mux.Allow(func(*http.Request) bool { return false })),
			WithErrorHandlers(mux.NewErrorHandlers().Status(http.StatusForbidden,
				func(w http.ResponseWriter, _ *http.Request, _ error) error {
					w.WriteHeader(http.StatusForbidden)
					_, err := io.WriteString(w, "go away")
					return err
				})),
		)
		a.Router().HandleFunc("/", text("ok"))

		w := serve(a, http.MethodGet, "/")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "go away", w.Body.String())
	})

	t.Run("timeout middleware", func(t *testing.T) {
		timeout, err := muxhandlers.TimeoutMiddleware(10 * time.Millisecond)
		require.NoError(t, err)

		a := New(WithMiddleware(timeout))
		a.Router().HandleFunc("/slow", func(_ http.ResponseWriter, r *http.Request) error {
			<-r.Context().Done()
			return r.Context().Err()
		})

		assert.Equal(t, http.StatusServiceUnavailable, serve(a, http.MethodGet, "/slow").Code)
	})

	t.Run("body limit middleware", func(t *testing.T) {
		limit, err := muxhandlers.BodyLimitMiddleware(4)
		require.NoError(t, err)

		a := New(WithMiddleware(limit))
		a.Router().HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) error {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				return err
			}
			_, err = w.Write(body)
			return err
		})

		declared := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123456789"))
		w := httptest.NewRecorder()
		a.ServeHTTP(w, declared)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

		chunked := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123456789"))
		chunked.ContentLength = -1
		w = httptest.NewRecorder()
		a.ServeHTTP(w, chunked)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

		small := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("abc"))
		w = httptest.NewRecorder()
		a.ServeHTTP(w, small)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc", w.Body.String())
	})

	t.Run("middleware sees errors handled by the exception layer as handled", func(t *testing.T) {
		rec := &recorder{}
		a := New(
			WithMiddleware(mux.EndpointMiddleware(func(next mux.Endpoint) mux.Endpoint {
				return func(w http.ResponseWriter, r *http.Request) error {
					err := next(w, r)
					if err != nil {
						rec.add("error")
					} else {
						rec.add("ok")
					}
					return err
				}
			})),
			WithErrorHandlers(mux.NewErrorHandlers().Is(errSentinel,
				func(w http.ResponseWriter, _ *http.Request, _ error) error {
					w.WriteHeader(http.StatusTeapot)
					return nil
				})),
		)
		a.Router().HandleFunc("/", func(http.ResponseWriter, *http.Request) error {
			return errSentinel
		})

		assert.Equal(t, http.StatusTeapot, serve(a, http.MethodGet, "/").Code)
		assert.Equal(t, []string{"ok"}, rec.events)
	})
}
