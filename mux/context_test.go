package mux

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVars(t *testing.T) {
	t.Run("returns nil for request without vars", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Nil(t, Vars(r))
		assert.Nil(t, PathParams(r))
		assert.Nil(t, CurrentRoute(r))
	})

	t.Run("returns vars from request context", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = setRouteContext(r, &RouteMatch{
			Vars:   map[string]string{"id": "42"},
			Params: Params{"id": 42},
		})

		assert.Equal(t, "42", Vars(r)["id"])
		v, ok := VarGet(r, "id")
		assert.True(t, ok)
		assert.Equal(t, "42", v)

		_, ok = VarGet(r, "missing")
		assert.False(t, ok)
	})
}

func TestParam(t *testing.T) {
	id := uuid.New()
	r := setRouteContext(httptest.NewRequest(http.MethodGet, "/", nil), &RouteMatch{
		Params: Params{"id": id, "n": 3},
	})

	got, ok := Param[uuid.UUID](r, "id")
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = Param[string](r, "n")
	assert.False(t, ok, "wrong type")

	_, ok = Param[int](r, "missing")
	assert.False(t, ok)
}

func TestSetURLVars(t *testing.T) {
	t.Run("sets vars on request", func(t *testing.T) {
		r := SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"key": "value"})
		assert.Equal(t, "value", Vars(r)["key"])
	})

	t.Run("keeps route and params", func(t *testing.T) {
		route := &Route{}
		r := setRouteContext(httptest.NewRequest(http.MethodGet, "/", nil), &RouteMatch{Route: route, Params: Params{"a": 1}})
		r = SetURLVars(r, map[string]string{"b": "2"})

		assert.Same(t, route, CurrentRoute(r))
		assert.Equal(t, Params{"a": 1}, PathParams(r))
		assert.Equal(t, map[string]string{"b": "2"}, Vars(r))
	})
}

func TestMatcherFunc(t *testing.T) {
	r := NewRouter()
	r.HandleFunc("/x", text("beta")).MatcherFunc(func(req *http.Request) bool {
		return req.Header.Get("X-Beta") == "1"
	})
	r.HandleFunc("/x", text("stable"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Beta", "1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "beta", w.Body.String())

	assert.Equal(t, "stable", serve(r, http.MethodGet, "/x").Body.String())
}

func BenchmarkParam(b *testing.B) {
	r := setRouteContext(httptest.NewRequest(http.MethodGet, "/", nil), &RouteMatch{Params: Params{"id": 42}})
	b.ResetTimer()
	for b.Loop() {
		Param[int](r, "id")
	}
}
