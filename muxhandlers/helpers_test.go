package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/vitalvas/lilya/mux"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})
}

func textEndpoint(body string) mux.Endpoint {
	return func(w http.ResponseWriter, _ *http.Request) error {
		_, err := w.Write([]byte(body))
		return err
	}
}

func do(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func get(target string, headers ...string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Add(headers[i], headers[i+1])
	}
	return r
}

var longBody = strings.Repeat("lilya ", 200)
