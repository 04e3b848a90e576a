package mux

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
)

// cleanPath returns the canonical path for p, eliminating . and .. elements
// per RFC 3986 Section 5.2.4 (remove dot segments).
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// toggleTrailingSlash adds a trailing slash to p or removes it.
func toggleTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return strings.TrimSuffix(p, "/")
	}
	return p + "/"
}

// hasSegmentPrefix reports whether p starts with prefix on a segment
// boundary.
func hasSegmentPrefix(p, prefix string) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/'
}

// checkPairs returns an error if the list of key/value pairs has odd length.
func checkPairs[T any](pairs ...T) (int, error) {
	if len(pairs)%2 != 0 {
		return 0, fmt.Errorf("mux: number of parameters must be multiple of 2, got %v", pairs)
	}
	return len(pairs) / 2, nil
}

// mapFromPairsToString converts variadic string parameters to a string map.
func mapFromPairsToString(pairs ...string) (map[string]string, error) {
	length, err := checkPairs(pairs...)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, length)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m, nil
}

// mapFromPairs converts name/value pairs to a parameter map. Names must be
// strings.
func mapFromPairs(pairs ...any) (map[string]any, error) {
	length, err := checkPairs(pairs...)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, length)
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("mux: parameter name must be a string, got %T", pairs[i])
		}
		m[name] = pairs[i+1]
	}
	return m, nil
}

// uniqueVars returns an error if two slices contain duplicated variable names.
func uniqueVars(s1, s2 []string) error {
	for _, v := range s2 {
		if slices.Contains(s1, v) {
			return fmt.Errorf("mux: duplicated route variable %q", v)
		}
	}
	return nil
}

// matchMapWithString returns true if the given key/value pairs exist in a
// given map. When canonicalKey is true, keys are normalized per
// RFC 9110 Section 5.1 (field names are case-insensitive).
func matchMapWithString(toCheck map[string]string, toMatch map[string][]string, canonicalKey bool) bool {
	for k, v := range toCheck {
		if canonicalKey {
			k = http.CanonicalHeaderKey(k)
		}
		values, keyExists := toMatch[k]
		if !keyExists {
			return false
		}
		if v != "" && !slices.Contains(values, v) {
			return false
		}
	}
	return true
}

// requestScheme returns the URL scheme, inferred from the TLS state when
// the request URL carries none.
func requestScheme(r *http.Request) string {
	if r.URL.Scheme != "" {
		return strings.ToLower(r.URL.Scheme)
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// requestURIPath returns the percent-encoded path from the request URI
// per RFC 3986 Section 2.1. Falls back to the decoded Path if RawPath
// is empty.
func requestURIPath(u *url.URL) string {
	if u.RawPath != "" {
		return u.RawPath
	}
	return u.Path
}
