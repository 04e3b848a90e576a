package mux

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemsController struct {
	rec *recorder
}

func (c itemsController) Get(w http.ResponseWriter, _ *http.Request) error {
	_, err := fmt.Fprint(w, "list")
	return err
}

func (c itemsController) Post(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusCreated)
	return nil
}

func (c itemsController) Middleware() []Middleware {
	return []Middleware{c.rec.mw("class")}
}

func (c itemsController) Permissions() []Permission {
	return []Permission{c.rec.perm("class-perm")}
}

func (c itemsController) Dependencies() Dependencies {
	return Dependencies{"source": Value("class")}
}

type sourceController struct{}

func (sourceController) Get(w http.ResponseWriter, r *http.Request) error {
	source, _ := Dependency[string](r, "source")
	_, err := fmt.Fprint(w, source)
	return err
}

func (sourceController) Dependencies() Dependencies {
	return Dependencies{"source": Value("class")}
}

type emptyController struct{}

type deleteOnly struct{}

func (deleteOnly) Delete(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (deleteOnly) ErrorHandlers() *ErrorHandlers {
	return NewErrorHandlers().Status(http.StatusMethodNotAllowed, statusHandler(http.StatusTeapot))
}

func TestController(t *testing.T) {
	t.Run("methods derive from implemented interfaces", func(t *testing.T) {
		r := NewRouter()
		route := r.Controller("/items", itemsController{rec: &recorder{}})

		methods, err := route.GetMethods()
		require.NoError(t, err)
		assert.Equal(t, []string{http.MethodGet, http.MethodPost}, methods)

		assert.Equal(t, "list", serve(r, http.MethodGet, "/items").Body.String())
		assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/items").Code)
		assert.Equal(t, http.StatusOK, serve(r, http.MethodHead, "/items").Code)

		w := serve(r, http.MethodDelete, "/items")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, "GET, HEAD, POST", w.Header().Get("Allow"))
	})

	t.Run("class level wraps route level", func(t *testing.T) {
		rec := &recorder{}
		r := NewRouter()
		r.Controller("/items", itemsController{rec: rec}).
			Use(rec.mw("route")).
			Permissions(rec.perm("route-perm")).
			Dependencies(Dependencies{"extra": Value(1)})

		serve(r, http.MethodGet, "/items")
		assert.Equal(t, []string{
			"class>", "route>", "class-perm", "route-perm", "<route", "<class",
		}, rec.events)
	})

	t.Run("route dependencies override class ones", func(t *testing.T) {
		r := NewRouter()
		r.Controller("/class", sourceController{})
		r.Controller("/route", sourceController{}).Dependencies(Dependencies{"source": Value("route")})

		assert.Equal(t, "class", serve(r, http.MethodGet, "/class").Body.String())
		assert.Equal(t, "route", serve(r, http.MethodGet, "/route").Body.String())
	})

	t.Run("class error handlers", func(t *testing.T) {
		r := NewRouter()
		r.Controller("/items/{id:int}", deleteOnly{})

		assert.Equal(t, http.StatusNoContent, serve(r, http.MethodDelete, "/items/1").Code)
	})

	t.Run("controller without methods is a configuration error", func(t *testing.T) {
		r := NewRouter()
		r.Controller("/empty", emptyController{})
		err := r.Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "implements no HTTP method")
	})

	t.Run("nil controller", func(t *testing.T) {
		r := NewRouter()
		r.Controller("/nil", nil)
		assert.Error(t, r.Build())
	})
}
