package mux

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ResponseJSON encodes v as JSON and writes it to the response with the given
// status code. The Content-Type header is set to "application/json".
// If encoding fails, an HTTP 500 Internal Server Error is written instead.
func ResponseJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

// RenderError writes err to the client. HTTPErrors render their status,
// detail and headers; any other error renders an opaque 500. The body is
// {"detail": ...} JSON when the client accepts JSON and plain text
// otherwise. 204 and 304 responses carry no body.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	var he *HTTPError
	if !errors.As(err, &he) {
		he = NewHTTPError(http.StatusInternalServerError, "")
	}

	for k, vs := range he.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	if he.Code == http.StatusNoContent || he.Code == http.StatusNotModified {
		w.WriteHeader(he.Code)
		return
	}

	if AcceptsJSON(r) {
		ResponseJSON(w, he.Code, map[string]string{"detail": he.detail()})
		return
	}

	w.Header().Del("Content-Length")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(he.Code)
	w.Write([]byte(he.detail() + "\n"))
}

// AcceptsJSON reports whether the Accept header asks for JSON.
func AcceptsJSON(r *http.Request) bool {
	return accepts(r, "application/json") || accepts(r, "+json")
}

// AcceptsHTML reports whether the Accept header asks for HTML.
func AcceptsHTML(r *http.Request) bool {
	return accepts(r, "text/html")
}

func accepts(r *http.Request, mediaType string) bool {
	if r == nil {
		return false
	}
	for _, v := range r.Header.Values("Accept") {
		if strings.Contains(strings.ToLower(v), mediaType) {
			return true
		}
	}
	return false
}
