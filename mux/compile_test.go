package mux

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBraceIndices(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  []int
		expectErr bool
	}{
		{name: "no braces", input: "/foo/bar", expected: nil},
		{name: "single variable", input: "/foo/{id}", expected: []int{5, 9}},
		{name: "two variables", input: "/{a}/{b}", expected: []int{1, 4, 5, 8}},
		{name: "typed variable", input: "/{id:int}", expected: []int{1, 9}},
		{name: "unbalanced open", input: "/{id", expectErr: true},
		{name: "unbalanced close", input: "/id}", expectErr: true},
		{name: "empty string", input: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idxs, err := braceIndices(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, idxs)
			}
		})
	}
}

func TestCheckDuplicateVars(t *testing.T) {
	t.Run("no duplicates", func(t *testing.T) {
		assert.NoError(t, checkDuplicateVars([]string{"a", "b", "c"}))
	})

	t.Run("with duplicates", func(t *testing.T) {
		err := checkDuplicateVars([]string{"a", "b", "a"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicated route variable")
	})
}

func TestGetHost(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{name: "plain", host: "example.com", expected: "example.com"},
		{name: "with port", host: "example.com:8080", expected: "example.com"},
		{name: "uppercase", host: "API.Example.COM", expected: "api.example.com"},
		{name: "ipv6 with port", host: "[::1]:8080", expected: "::1"},
		{name: "ipv6 without port", host: "[fe80::1]", expected: "fe80::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Host = tt.host
			assert.Equal(t, tt.expected, getHost(r))
		})
	}
}

func TestCompilePattern(t *testing.T) {
	t.Run("builds anchored regexp", func(t *testing.T) {
		p, err := compilePattern("/users/{id:int}", kindPath)
		require.NoError(t, err)
		assert.Equal(t, `^/users/(?P<id>[0-9]+)$`, p.regexp.String())
		assert.Equal(t, []string{"id"}, p.params)
	})

	t.Run("defaults to str converter", func(t *testing.T) {
		p, err := compilePattern("/users/{name}", kindPath)
		require.NoError(t, err)
		assert.Equal(t, `^/users/(?P<name>[^/]+)$`, p.regexp.String())
	})

	t.Run("quotes literal segments", func(t *testing.T) {
		p, err := compilePattern("/files/a.b+c", kindPath)
		require.NoError(t, err)
		assert.True(t, p.regexp.MatchString("/files/a.b+c"))
		assert.False(t, p.regexp.MatchString("/files/aXbbc"))
	})

	t.Run("prefix stops on segment boundary", func(t *testing.T) {
		p, err := compilePattern("/users/", kindPrefix)
		require.NoError(t, err)
		assert.Equal(t, "/users", p.template)

		_, _, rest, ok := p.match("/users/42")
		require.True(t, ok)
		assert.Equal(t, "/42", rest)

		_, _, rest, ok = p.match("/users")
		require.True(t, ok)
		assert.Equal(t, "/", rest)

		_, _, _, ok = p.match("/usersx")
		assert.False(t, ok)
	})

	t.Run("host default fragment stops at dots", func(t *testing.T) {
		p, err := compilePattern("{sub}.Example.com", kindHost)
		require.NoError(t, err)

		vars, _, _, ok := p.match("api.example.com")
		require.True(t, ok)
		assert.Equal(t, "api", vars["sub"])

		_, _, _, ok = p.match("a.b.example.com")
		assert.False(t, ok)
	})

	t.Run("conversion failure is a mismatch", func(t *testing.T) {
		p, err := compilePattern("/d/{day:date}", kindPath)
		require.NoError(t, err)
		_, _, _, ok := p.match("/d/2024-13-45")
		assert.False(t, ok)
	})

	errorCases := []struct {
		name string
		tpl  string
		msg  string
	}{
		{name: "unknown converter", tpl: "/x/{id:nope}", msg: "unknown path converter"},
		{name: "duplicate parameter", tpl: "/{id}/{id}", msg: "duplicated route variable"},
		{name: "invalid name", tpl: "/{1abc}", msg: "invalid parameter name"},
		{name: "missing slash", tpl: "users", msg: "must start with a slash"},
		{name: "unbalanced", tpl: "/{id", msg: "unbalanced braces"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compilePattern(tt.tpl, kindPath)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestPatternRoundTrip(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	at := time.Date(2024, 1, 15, 10, 30, 5, 250000000, time.UTC)

	tests := []struct {
		name   string
		tpl    string
		values map[string]any
		path   string
	}{
		{name: "str", tpl: "/u/{name}", values: map[string]any{"name": "alice"}, path: "/u/alice"},
		{name: "path", tpl: "/static/{file:path}", values: map[string]any{"file": "css/site.css"}, path: "/static/css/site.css"},
		{name: "int", tpl: "/items/{id:int}", values: map[string]any{"id": 42}, path: "/items/42"},
		{name: "float", tpl: "/price/{p:float}", values: map[string]any{"p": 3.5}, path: "/price/3.5"},
		{name: "uuid", tpl: "/obj/{id:uuid}", values: map[string]any{"id": id}, path: "/obj/550e8400-e29b-41d4-a716-446655440000"},
		{name: "slug", tpl: "/posts/{s:slug}", values: map[string]any{"s": "hello-world"}, path: "/posts/hello-world"},
		{name: "date", tpl: "/days/{d:date}", values: map[string]any{"d": day}, path: "/days/2024-01-15"},
		{name: "datetime", tpl: "/at/{t:datetime}", values: map[string]any{"t": at}, path: "/at/2024-01-15T10:30:05.25"},
		{name: "hex", tpl: "/h/{v:hex}", values: map[string]any{"v": "deadBEEF"}, path: "/h/deadBEEF"},
		{name: "domain", tpl: "/d/{host:domain}", values: map[string]any{"host": "sub.example.com"}, path: "/d/sub.example.com"},
		{
			name:   "several",
			tpl:    "/{org}/items/{id:int}/{day:date}",
			values: map[string]any{"org": "acme", "id": 7, "day": day},
			path:   "/acme/items/7/2024-01-15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := compilePattern(tt.tpl, kindPath)
			require.NoError(t, err)

			built, err := p.build(tt.values, map[string]bool{})
			require.NoError(t, err)
			assert.Equal(t, tt.path, built)

			_, params, _, ok := p.match(built)
			require.True(t, ok)
			require.Len(t, params, len(tt.values))
			for k, want := range tt.values {
				if wt, isTime := want.(time.Time); isTime {
					assert.True(t, wt.Equal(params[k].(time.Time)), k)
					continue
				}
				assert.Equal(t, want, params[k], k)
			}
		})
	}
}

func TestPatternBuildErrors(t *testing.T) {
	p, err := compilePattern("/items/{id:int}", kindPath)
	require.NoError(t, err)

	t.Run("missing parameter", func(t *testing.T) {
		_, err := p.build(map[string]any{}, map[string]bool{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing route parameter")
	})

	t.Run("negative int", func(t *testing.T) {
		_, err := p.build(map[string]any{"id": -1}, map[string]bool{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "negative")
	})

	t.Run("string not matching regexp", func(t *testing.T) {
		_, err := p.build(map[string]any{"id": "abc"}, map[string]bool{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match")
	})

	t.Run("int overflow", func(t *testing.T) {
		_, err := p.build(map[string]any{"id": uint64(math.MaxInt) + 1}, map[string]bool{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "overflows int")

		_, err = p.build(map[string]any{"id": "9223372036854775808"}, map[string]bool{})
		assert.Error(t, err)

		built, err := p.build(map[string]any{"id": uint64(math.MaxInt)}, map[string]bool{})
		require.NoError(t, err)
		_, params, _, ok := p.match(built)
		require.True(t, ok)
		assert.Equal(t, math.MaxInt, params["id"])
	})

	t.Run("dot segments", func(t *testing.T) {
		str, err := compilePattern("/s/{v}", kindPath)
		require.NoError(t, err)
		file, err := compilePattern("/f/{v:path}", kindPath)
		require.NoError(t, err)

		for _, tc := range []struct {
			p     *pathPattern
			value string
		}{
			{str, "."},
			{str, ".."},
			{file, "a/../b"},
			{file, "./a"},
			{file, ".."},
		} {
			_, err := tc.p.build(map[string]any{"v": tc.value}, map[string]bool{})
			require.Error(t, err, tc.value)
			assert.Contains(t, err.Error(), "dot segment")
		}

		built, err := str.build(map[string]any{"v": "...x"}, map[string]bool{})
		require.NoError(t, err)
		assert.Equal(t, "/s/...x", built)
	})
}

func TestURLForRoundTripThroughRouter(t *testing.T) {
	r := NewRouter()
	r.HandleFunc("/s/{v}", func(w http.ResponseWriter, req *http.Request) error {
		v, _ := Param[string](req, "v")
		_, err := w.Write([]byte(v))
		return err
	}).Name("s")

	for _, v := range []string{"a b?c#d%e", "..x", "x.."} {
		u, err := r.URLFor("s", map[string]any{"v": v})
		require.NoError(t, err, v)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, u.String(), nil))
		assert.Equal(t, http.StatusOK, w.Code, v)
		assert.Equal(t, v, w.Body.String())
	}

	_, err := r.URLFor("s", map[string]any{"v": ".."})
	assert.Error(t, err)
}

func BenchmarkPatternMatch(b *testing.B) {
	p, err := compilePattern("/users/{id:int}/posts/{slug:slug}", kindPath)
	require.NoError(b, err)
	b.ResetTimer()
	for b.Loop() {
		p.match("/users/42/posts/hello-world")
	}
}
