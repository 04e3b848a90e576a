package mux

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Converter turns a matched path segment into a typed value and a typed
// value back into a path segment.
type Converter struct {
	// Regex is the unanchored regular expression fragment substituted for
	// the parameter in the compiled route pattern.
	Regex string

	// Convert parses the matched string. An error makes the route not match.
	Convert func(string) (any, error)

	// ToString formats a value when building URLs.
	ToString func(any) (string, error)

	maxLen int
	re     *regexp.Regexp
}

// validate checks a value produced by ToString against the converter regexp.
func (c *Converter) validate(s string) bool {
	if c.maxLen > 0 && len(s) > c.maxLen {
		return false
	}
	return c.re.MatchString(s)
}

var (
	convertersMu sync.RWMutex
	converters   = make(map[string]*Converter)
)

// ErrConverterExists is returned by RegisterConverter when the tag is taken.
var ErrConverterExists = errors.New("mux: converter already registered")

// RegisterConverter makes a converter available to path templates under the
// given tag, as in {id:tag}. Registering an existing tag fails unless
// override is set.
func RegisterConverter(name string, c Converter, override bool) error {
	if !paramNameRe.MatchString(name) {
		return fmt.Errorf("mux: invalid converter name %q", name)
	}
	if c.Regex == "" {
		return fmt.Errorf("mux: converter %q has an empty regex", name)
	}
	if c.Convert == nil || c.ToString == nil {
		return fmt.Errorf("mux: converter %q needs both Convert and ToString", name)
	}
	re, err := regexp.Compile("^(?:" + c.Regex + ")$")
	if err != nil {
		return fmt.Errorf("mux: converter %q: %w", name, err)
	}
	c.re = re

	convertersMu.Lock()
	defer convertersMu.Unlock()

	if _, ok := converters[name]; ok && !override {
		return fmt.Errorf("%w: %q", ErrConverterExists, name)
	}
	converters[name] = &c
	return nil
}

func lookupConverter(name string) (*Converter, error) {
	convertersMu.RLock()
	defer convertersMu.RUnlock()

	c, ok := converters[name]
	if !ok {
		return nil, fmt.Errorf("mux: unknown path converter %q", name)
	}
	return c, nil
}

// hostConverter is the default converter for host templates: one label.
var hostConverter = &Converter{
	Regex:    `[^.]+`,
	Convert:  convertString,
	ToString: formatString,
	re:       regexp.MustCompile(`^(?:[^.]+)$`),
}

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02T15:04:05.999999999"
)

func init() {
	builtin := map[string]Converter{
		"str":   {Regex: `[^/]+`, Convert: convertString, ToString: formatString},
		"path":  {Regex: `.*`, Convert: convertString, ToString: formatString},
		"int":   {Regex: `[0-9]+`, Convert: convertInt, ToString: formatInt},
		"float": {Regex: `[0-9]+(?:\.[0-9]+)?`, Convert: convertFloat, ToString: formatFloat},
		"uuid": {
			Regex:    `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
			Convert:  convertUUID,
			ToString: formatUUID,
		},
		"slug": {Regex: `[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*`, Convert: convertString, ToString: formatString},
		"date": {Regex: `[0-9]{4}-[0-9]{2}-[0-9]{2}`, Convert: convertTime(dateLayout), ToString: formatTime(dateLayout)},
		"datetime": {
			Regex:    `[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}(?:\.[0-9]+)?`,
			Convert:  convertTime(datetimeLayout),
			ToString: formatTime(datetimeLayout),
		},
		"hex": {Regex: `[0-9a-fA-F]+`, Convert: convertString, ToString: formatString},
		// RFC 1123 hostname, total length capped at 253 characters.
		"domain": {
			Regex:    `(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?`,
			Convert:  convertDomain,
			ToString: formatString,
			maxLen:   253,
		},
	}
	for name, c := range builtin {
		if err := RegisterConverter(name, c, false); err != nil {
			panic(err)
		}
	}
}

func convertString(s string) (any, error) {
	return s, nil
}

func formatString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return fmt.Sprint(v), nil
}

func convertInt(s string) (any, error) {
	return strconv.Atoi(s)
}

func formatInt(v any) (string, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		return formatUint(uint64(x))
	case uint32:
		return formatUint(uint64(x))
	case uint64:
		return formatUint(x)
	case string:
		return x, nil
	default:
		return "", fmt.Errorf("mux: int converter cannot format %T", v)
	}
	if n < 0 {
		return "", fmt.Errorf("mux: negative value %d not supported", n)
	}
	return strconv.FormatInt(n, 10), nil
}

// formatUint rejects values the int converter cannot parse back.
func formatUint(n uint64) (string, error) {
	if n > math.MaxInt {
		return "", fmt.Errorf("mux: value %d overflows int", n)
	}
	return strconv.FormatUint(n, 10), nil
}

func convertFloat(s string) (any, error) {
	return strconv.ParseFloat(s, 64)
}

func formatFloat(v any) (string, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case string:
		return x, nil
	default:
		return "", fmt.Errorf("mux: float converter cannot format %T", v)
	}
	switch {
	case math.IsNaN(f):
		return "", errors.New("mux: NaN values not supported")
	case math.IsInf(f, 0):
		return "", errors.New("mux: infinite values not supported")
	case f < 0:
		return "", fmt.Errorf("mux: negative value %v not supported", f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func convertUUID(s string) (any, error) {
	return uuid.Parse(s)
}

func formatUUID(v any) (string, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String(), nil
	case string:
		id, err := uuid.Parse(x)
		if err != nil {
			return "", err
		}
		return id.String(), nil
	}
	return "", fmt.Errorf("mux: uuid converter cannot format %T", v)
}

func convertTime(layout string) func(string) (any, error) {
	return func(s string) (any, error) {
		return time.Parse(layout, s)
	}
}

func formatTime(layout string) func(any) (string, error) {
	return func(v any) (string, error) {
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Format(layout), nil
		case string:
			return x, nil
		}
		return "", fmt.Errorf("mux: time converter cannot format %T", v)
	}
}

func convertDomain(s string) (any, error) {
	if len(s) > 253 {
		return nil, fmt.Errorf("mux: domain exceeds 253 characters")
	}
	return s, nil
}
