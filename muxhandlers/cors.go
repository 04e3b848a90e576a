package muxhandlers

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/vitalvas/lilya/mux"
)

// ErrWildcardCredentials is returned when AllowedOrigins contains "*" and
// AllowCredentials is true. Use AllowOriginFunc for dynamic origin checks
// with credentials.
var ErrWildcardCredentials = errors.New("cors: wildcard origin \"*\" cannot be used with AllowCredentials")

// safelistedHeaders are always allowed in preflight requests
// (Fetch Standard, CORS-safelisted request-header).
var safelistedHeaders = []string{"accept", "accept-language", "content-language", "content-type"}

// CORSConfig configures the CORS middleware behaviour.
//
// References:
//   - CORS protocol: https://fetch.spec.whatwg.org/#http-cors-protocol
//   - Web Origin:    https://www.rfc-editor.org/rfc/rfc6454
type CORSConfig struct {
	// AllowedOrigins is a list of exact origins, "*" for any origin, or
	// subdomain patterns like "https://*.example.com".
	AllowedOrigins []string

	// AllowOriginFunc is consulted when the origin matches no entry in
	// AllowedOrigins.
	AllowOriginFunc func(origin string) bool

	// AllowedMethods lists the methods accepted in preflight requests.
	// When empty, the methods registered on Router for the request path
	// are used.
	AllowedMethods []string

	// Router is used to discover allowed methods. Required when
	// AllowedMethods is empty.
	Router *mux.Router

	// AllowedHeaders lists headers accepted in preflight requests in
	// addition to the safelisted ones. "*" accepts any header.
	AllowedHeaders []string

	// ExposeHeaders lists headers the browser may expose to client code.
	ExposeHeaders []string

	// AllowCredentials sets Access-Control-Allow-Credentials: true.
	AllowCredentials bool

	// MaxAge is the preflight cache duration in seconds. Zero defaults to
	// 600; negative values send 0.
	MaxAge int
}

type originPattern struct {
	prefix string
	suffix string
}

type corsPolicy struct {
	cfg          CORSConfig
	anyOrigin    bool
	anyHeader    bool
	exact        []string
	patterns     []originPattern
	allowHeaders []string
	maxAge       string
}

func newCORSPolicy(cfg CORSConfig) (*corsPolicy, error) {
	p := &corsPolicy{cfg: cfg}

	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		lower := strings.ToLower(o)
		prefix, suffix, found := strings.Cut(lower, "*")
		if !found {
			p.exact = append(p.exact, lower)
			continue
		}
		if strings.Contains(suffix, "*") {
			return nil, errors.New("cors: origin pattern contains multiple wildcards: " + o)
		}
		p.patterns = append(p.patterns, originPattern{prefix: prefix, suffix: suffix})
	}

	if p.anyOrigin && cfg.AllowCredentials {
		return nil, ErrWildcardCredentials
	}
	if len(cfg.AllowedMethods) == 0 && cfg.Router == nil {
		return nil, errors.New("cors: either AllowedMethods or Router must be set")
	}

	p.anyHeader = slices.Contains(cfg.AllowedHeaders, "*")
	for _, h := range cfg.AllowedHeaders {
		if h != "*" {
			p.allowHeaders = append(p.allowHeaders, strings.ToLower(h))
		}
	}
	p.allowHeaders = append(p.allowHeaders, safelistedHeaders...)
	slices.Sort(p.allowHeaders)
	p.allowHeaders = slices.Compact(p.allowHeaders)

	switch {
	case cfg.MaxAge == 0:
		p.maxAge = "600"
	case cfg.MaxAge < 0:
		p.maxAge = "0"
	default:
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return p, nil
}

func (p *corsPolicy) allowsOrigin(origin string) bool {
	if p.anyOrigin {
		return true
	}
	lower := strings.ToLower(origin)
	if slices.Contains(p.exact, lower) {
		return true
	}
	for _, wp := range p.patterns {
		if len(lower) >= len(wp.prefix)+len(wp.suffix) &&
			strings.HasPrefix(lower, wp.prefix) &&
			strings.HasSuffix(lower, wp.suffix) {
			return true
		}
	}
	return p.cfg.AllowOriginFunc != nil && p.cfg.AllowOriginFunc(origin)
}

// specificOrigin reports whether responses depend on the Origin header.
func (p *corsPolicy) specificOrigin() bool {
	return !p.anyOrigin || p.cfg.AllowCredentials
}

func (p *corsPolicy) methods(r *http.Request) []string {
	if len(p.cfg.AllowedMethods) > 0 {
		return p.cfg.AllowedMethods
	}
	return p.cfg.Router.AllowedMethods(r)
}

func (p *corsPolicy) setOrigin(h http.Header, origin string) {
	if p.specificOrigin() {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	} else {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	if p.cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

// preflight answers an OPTIONS request carrying
// Access-Control-Request-Method. Disallowed requests get 400 with the
// reasons joined in the body.
func (p *corsPolicy) preflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	h := w.Header()
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	var failures []string
	if p.allowsOrigin(origin) {
		p.setOrigin(h, origin)
	} else {
		failures = append(failures, "origin")
	}

	methods := p.methods(r)
	requested := strings.ToUpper(r.Header.Get("Access-Control-Request-Method"))
	allowed := slices.Contains(methods, requested)
	if !allowed && len(methods) == 0 && p.cfg.Router != nil {
		// A route without a method restriction accepts anything.
		probe := r.Clone(r.Context())
		probe.Method = requested
		allowed = p.cfg.Router.Match(probe, &mux.RouteMatch{})
		methods = []string{requested}
	}
	if allowed {
		h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	} else {
		failures = append(failures, "method")
	}

	if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		if p.anyHeader {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			for _, name := range strings.Split(reqHeaders, ",") {
				name = strings.ToLower(strings.TrimSpace(name))
				if name != "" && !slices.Contains(p.allowHeaders, name) {
					failures = append(failures, "headers")
					break
				}
			}
			h.Set("Access-Control-Allow-Headers", strings.Join(p.allowHeaders, ", "))
		}
	}
	h.Set("Access-Control-Max-Age", p.maxAge)

	if len(failures) > 0 {
		mux.RenderError(w, r, mux.BadRequest("Disallowed CORS "+strings.Join(failures, ", ")))
		return
	}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}

// CORSMiddleware returns a middleware implementing the CORS protocol per the
// Fetch Standard. Preflight requests are answered directly, so the
// middleware belongs at the application level where it runs before routing
// and never sees a 405.
//
// It returns an error if the configuration is invalid (e.g. wildcard origin
// combined with AllowCredentials).
func CORSMiddleware(cfg CORSConfig) (mux.MiddlewareFunc, error) {
	p, err := newCORSPolicy(cfg)
	if err != nil {
		return nil, err
	}

	exposeHeaders := strings.Join(cfg.ExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPreflight(r) {
				p.preflight(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				if p.specificOrigin() {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			if p.allowsOrigin(origin) {
				p.setOrigin(w.Header(), origin)
				if exposeHeaders != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposeHeaders)
				}
			} else if !httpguts.HeaderValuesContainsToken(w.Header()["Vary"], "Origin") && p.specificOrigin() {
				w.Header().Add("Vary", "Origin")
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
