package app

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"runtime"
	"strings"

	"github.com/vitalvas/lilya/mux"
)

// stackSize bounds the stack trace captured for a panic.
const stackSize = 8 << 10

// PanicError is the error a recovered panic is turned into.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// serverError is the outermost layer. It turns panics into PanicErrors and
// renders every error that reaches it as an opaque 500, or as the debug page in
// debug mode. If the response has already started the request is aborted.
func (a *App) serverError(next mux.Endpoint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := mux.NewResponseWriter(w)

		err := recoverEndpoint(next, rw, r)
		if err == nil {
			return
		}

		attrs := []any{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		}
		var pe *PanicError
		if errors.As(err, &pe) {
			attrs = append(attrs, slog.String("stack", string(pe.Stack)))
		}

		if rw.Written() {
			a.logger.ErrorContext(r.Context(), "error after response started", attrs...)
			panic(http.ErrAbortHandler)
		}

		a.logger.ErrorContext(r.Context(), "unhandled error", attrs...)

		if a.debug {
			renderDebug(rw, r, err)
			return
		}
		mux.RenderError(rw, r, mux.NewHTTPError(http.StatusInternalServerError, ""))
	})
}

func recoverEndpoint(next mux.Endpoint, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if e, ok := rec.(error); ok && errors.Is(e, http.ErrAbortHandler) {
			panic(rec)
		}

		stack := make([]byte, stackSize)
		stack = stack[:runtime.Stack(stack, false)]
		err = &PanicError{Value: rec, Stack: stack}
	}()

	return next(w, r)
}

var debugPage = template.Must(template.New("debug").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>500 Internal Server Error</title></head>
<body>
<h1>500 Internal Server Error</h1>
<h2>{{.Method}} {{.Path}}</h2>
<ol>{{range .Chain}}<li><code>{{.}}</code></li>{{end}}</ol>
{{if .Stack}}<h2>Stack</h2><pre>{{.Stack}}</pre>{{end}}
</body>
</html>
`))

type debugInfo struct {
	Method string
	Path   string
	Chain  []string
	Stack  string
}

// renderDebug writes the error chain and, for panics, the stack trace as
// HTML when the client accepts it and as plain text otherwise.
func renderDebug(w http.ResponseWriter, r *http.Request, err error) {
	info := debugInfo{
		Method: r.Method,
		Path:   r.URL.Path,
		Chain:  errorChain(err),
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		info.Stack = string(pe.Stack)
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")

	if mux.AcceptsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		debugPage.Execute(w, info) //nolint:errcheck
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "500 Internal Server Error\n\n%s %s\n\n", info.Method, info.Path)
	for i, link := range info.Chain {
		fmt.Fprintf(&b, "%d. %s\n", i+1, link)
	}
	if info.Stack != "" {
		b.WriteString("\n")
		b.WriteString(info.Stack)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(b.String())) //nolint:errcheck
}

// errorChain lists the messages of err and every error it wraps, depth
// first, each with its type.
func errorChain(err error) []string {
	var out []string
	var walk func(error)
	walk = func(err error) {
		for err != nil {
			out = append(out, fmt.Sprintf("%T: %s", err, err))
			switch x := err.(type) {
			case interface{ Unwrap() error }:
				err = x.Unwrap()
			case interface{ Unwrap() []error }:
				for _, inner := range x.Unwrap() {
					walk(inner)
				}
				return
			default:
				return
			}
		}
	}
	walk(err)
	return out
}
