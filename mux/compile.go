package mux

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
)

type patternKind int

const (
	kindPath patternKind = iota
	kindPrefix
	kindHost
)

// paramNameRe restricts parameter and converter names to identifiers.
var paramNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// segment is one piece of a template: a literal or a parameter.
type segment struct {
	literal string
	param   string
	conv    *Converter
}

// pathPattern is a compiled path, prefix or host template.
type pathPattern struct {
	template string
	kind     patternKind
	regexp   *regexp.Regexp
	segments []segment
	params   []string
}

// regexpCache shares compiled patterns between routes with equal templates.
var regexpCache sync.Map

func compileRegexp(pattern string) (*regexp.Regexp, error) {
	if v, ok := regexpCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := regexpCache.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// compilePattern scans tpl for {name} and {name:type} placeholders and
// builds an anchored matcher plus the segments used for reverse building.
func compilePattern(tpl string, kind patternKind) (*pathPattern, error) {
	if kind != kindHost && !strings.HasPrefix(tpl, "/") && tpl != "" {
		return nil, fmt.Errorf("mux: path %q must start with a slash", tpl)
	}
	if kind == kindPath && tpl == "" {
		return nil, fmt.Errorf("mux: empty path template")
	}
	if kind == kindPrefix {
		tpl = strings.TrimSuffix(tpl, "/")
	}

	idxs, err := braceIndices(tpl)
	if err != nil {
		return nil, err
	}

	p := &pathPattern{template: tpl, kind: kind}
	var pattern strings.Builder
	pattern.WriteByte('^')

	end := 0
	for i := 0; i < len(idxs); i += 2 {
		literal := tpl[end:idxs[i]]
		if kind == kindHost {
			literal = strings.ToLower(literal)
		}
		end = idxs[i+1]

		name, tag, hasTag := strings.Cut(tpl[idxs[i]+1:end-1], ":")
		name = strings.TrimSpace(name)
		tag = strings.TrimSpace(tag)
		if !paramNameRe.MatchString(name) {
			return nil, fmt.Errorf("mux: invalid parameter name %q in %q", name, tpl)
		}

		var conv *Converter
		switch {
		case !hasTag && kind == kindHost:
			conv = hostConverter
		case !hasTag:
			tag = "str"
			fallthrough
		default:
			if conv, err = lookupConverter(tag); err != nil {
				return nil, fmt.Errorf("%w in %q", err, tpl)
			}
		}

		pattern.WriteString(regexp.QuoteMeta(literal))
		fmt.Fprintf(&pattern, "(?P<%s>%s)", name, conv.Regex)

		if literal != "" {
			p.segments = append(p.segments, segment{literal: literal})
		}
		p.segments = append(p.segments, segment{param: name, conv: conv})
		p.params = append(p.params, name)
	}

	tail := tpl[end:]
	if kind == kindHost {
		tail = strings.ToLower(tail)
	}
	pattern.WriteString(regexp.QuoteMeta(tail))
	if tail != "" {
		p.segments = append(p.segments, segment{literal: tail})
	}

	if err := checkDuplicateVars(p.params); err != nil {
		return nil, err
	}

	if kind == kindPrefix {
		pattern.WriteString("(/.*)?")
	}
	pattern.WriteByte('$')

	if p.regexp, err = compileRegexp(pattern.String()); err != nil {
		return nil, fmt.Errorf("mux: template %q: %w", tpl, err)
	}
	return p, nil
}

// match reports whether s matches the pattern and returns the raw and
// converted parameters. For prefix patterns rest holds the unmatched
// remainder, "/" when the prefix consumed everything. A converter failure
// is a mismatch.
func (p *pathPattern) match(s string) (raw map[string]string, typed Params, rest string, ok bool) {
	m := p.regexp.FindStringSubmatch(s)
	if m == nil {
		return nil, nil, "", false
	}
	if len(p.params) > 0 {
		raw = make(map[string]string, len(p.params))
		typed = make(Params, len(p.params))
		for _, seg := range p.segments {
			if seg.param == "" {
				continue
			}
			v := m[p.regexp.SubexpIndex(seg.param)]
			if seg.conv.maxLen > 0 && len(v) > seg.conv.maxLen {
				return nil, nil, "", false
			}
			val, err := seg.conv.Convert(v)
			if err != nil {
				return nil, nil, "", false
			}
			raw[seg.param] = v
			typed[seg.param] = val
		}
	}
	if p.kind == kindPrefix {
		rest = m[len(m)-1]
		if rest == "" {
			rest = "/"
		}
	}
	return raw, typed, rest, true
}

// build substitutes values into the template. Every used key is recorded
// in used so callers can detect unexpected parameters.
func (p *pathPattern) build(values map[string]any, used map[string]bool) (string, error) {
	var b strings.Builder
	for _, seg := range p.segments {
		if seg.param == "" {
			b.WriteString(seg.literal)
			continue
		}
		v, ok := values[seg.param]
		if !ok {
			return "", fmt.Errorf("mux: missing route parameter %q for %q", seg.param, p.template)
		}
		s, err := seg.conv.ToString(v)
		if err != nil {
			return "", fmt.Errorf("mux: parameter %q: %w", seg.param, err)
		}
		if !seg.conv.validate(s) {
			return "", fmt.Errorf("mux: value %q for parameter %q does not match %q", s, seg.param, seg.conv.Regex)
		}
		// Dot segments would be removed by path cleaning before matching.
		if p.kind != kindHost && hasDotSegment(s) {
			return "", fmt.Errorf("mux: value %q for parameter %q contains a dot segment", s, seg.param)
		}
		if _, err := seg.conv.Convert(s); err != nil {
			return "", fmt.Errorf("mux: value %q for parameter %q: %w", s, seg.param, err)
		}
		used[seg.param] = true
		b.WriteString(s)
	}
	return b.String(), nil
}

func hasDotSegment(s string) bool {
	for part := range strings.SplitSeq(s, "/") {
		if part == "." || part == ".." {
			return true
		}
	}
	return false
}

// braceIndices returns the first level curly brace indices from a string.
// It returns an error in case of unbalanced braces.
func braceIndices(s string) ([]int, error) {
	var (
		idxs  []int
		level int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if level++; level == 1 {
				idxs = append(idxs, i)
			}
		case '}':
			if level--; level == 0 {
				idxs = append(idxs, i+1)
			} else if level < 0 {
				return nil, fmt.Errorf("mux: unbalanced braces in %q", s)
			}
		}
	}
	if level != 0 {
		return nil, fmt.Errorf("mux: unbalanced braces in %q", s)
	}
	return idxs, nil
}

func checkDuplicateVars(vars []string) error {
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if seen[v] {
			return fmt.Errorf("mux: duplicated route variable %q", v)
		}
		seen[v] = true
	}
	return nil
}

// getHost returns the lowercased request host without port or IPv6 brackets.
func getHost(r *http.Request) string {
	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}
	if strings.HasPrefix(host, "[") {
		if i := strings.Index(host, "]"); i != -1 {
			return strings.ToLower(host[1:i])
		}
	}
	if i := strings.LastIndex(host, ":"); i != -1 && strings.Count(host, ":") == 1 {
		host = host[:i]
	}
	return strings.ToLower(host)
}
