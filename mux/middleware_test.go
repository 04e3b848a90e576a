package mux

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return EndpointMiddleware(func(next Endpoint) Endpoint {
			return func(w http.ResponseWriter, r *http.Request) error {
				order = append(order, name+">")
				err := next(w, r)
				order = append(order, "<"+name)
				return err
			}
		})
	}

	h := Chain(func(http.ResponseWriter, *http.Request) error {
		order = append(order, "handler")
		return nil
	}, mw("a"), mw("b"))

	require.NoError(t, h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, order)
}

func TestHandlerEndpoint(t *testing.T) {
	t.Run("plain handler", func(t *testing.T) {
		e := HandlerEndpoint(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		w := httptest.NewRecorder()
		require.NoError(t, e(w, httptest.NewRequest(http.MethodGet, "/", nil)))
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("endpoint is unwrapped", func(t *testing.T) {
		sentinel := errors.New("boom")
		var inner Endpoint = func(http.ResponseWriter, *http.Request) error { return sentinel }
		e := HandlerEndpoint(inner)
		assert.ErrorIs(t, e(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)), sentinel)
	})
}

func TestEndpointServeHTTP(t *testing.T) {
	t.Run("renders returned error", func(t *testing.T) {
		var e Endpoint = func(http.ResponseWriter, *http.Request) error {
			return Forbidden("nope")
		}
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "nope\n", w.Body.String())
	})

	t.Run("aborts when response already started", func(t *testing.T) {
		var e Endpoint = func(w http.ResponseWriter, _ *http.Request) error {
			_, _ = w.Write([]byte("partial"))
			return errors.New("late")
		}
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}

func TestIsNilMiddleware(t *testing.T) {
	var (
		mf MiddlewareFunc
		em EndpointMiddleware
		p  Permission
	)
	assert.True(t, isNilMiddleware(nil))
	assert.True(t, isNilMiddleware(mf))
	assert.True(t, isNilMiddleware(em))
	assert.True(t, isNilMiddleware(p))
	assert.False(t, isNilMiddleware(Allow(func(*http.Request) bool { return true })))
}

func TestCORSMethodMiddleware(t *testing.T) {
	r := NewRouter()
	r.HandleFunc("/items", text("list")).Methods(http.MethodGet)
	r.HandleFunc("/items", text("created")).Methods(http.MethodPost)
	r.Use(CORSMethodMiddleware(r))

	w := serve(r, http.MethodGet, "/items")
	assert.Equal(t, "list", w.Body.String())
	assert.Equal(t, "GET,HEAD,POST", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestMiddlewareFuncStandalone(t *testing.T) {
	mw := MiddlewareFunc(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Wrapped", "1")
			next.ServeHTTP(w, r)
		})
	})

	w := httptest.NewRecorder()
	mw.Middleware(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "1", w.Header().Get("X-Wrapped"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
