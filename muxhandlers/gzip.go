package muxhandlers

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/http/httpguts"

	"github.com/vitalvas/lilya/mux"
)

// ErrInvalidCompressionLevel is returned when GZipConfig.Level is outside
// the range accepted by compress/gzip.
var ErrInvalidCompressionLevel = errors.New("gzip: invalid compression level")

// GZipConfig configures the GZip middleware behaviour.
type GZipConfig struct {
	// MinimumSize is the smallest response body, in bytes, that gets
	// compressed. Zero defaults to 500; negative compresses everything.
	MinimumSize int

	// Level is the gzip compression level. Zero defaults to
	// gzip.BestCompression.
	Level int
}

// compressedContentTypes are media types that do not shrink under gzip.
var compressedContentTypes = []string{
	"image/",
	"video/",
	"audio/",
	"font/woff",
	"application/zip",
	"application/gzip",
	"application/x-gzip",
	"application/zstd",
	"application/x-7z-compressed",
	"text/event-stream",
}

// GZipMiddleware returns a middleware that compresses response bodies with
// gzip when the client accepts it. Small bodies are buffered until
// MinimumSize is reached; a smaller body is sent as is.
//
// Compression is skipped for responses that already carry a
// Content-Encoding, for compressed media types, for responses marked
// Cache-Control: no-transform and for upgrade requests.
func GZipMiddleware(cfg GZipConfig) (mux.MiddlewareFunc, error) {
	level := cfg.Level
	if level == 0 {
		level = gzip.BestCompression
	}
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, ErrInvalidCompressionLevel
	}

	minSize := cfg.MinimumSize
	switch {
	case minSize == 0:
		minSize = 500
	case minSize < 0:
		minSize = 0
	}

	pool := &sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(io.Discard, level)
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsGzip(r) || r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")

			gw := &gzipResponseWriter{
				ResponseWriter: w,
				pool:           pool,
				minSize:        minSize,
				status:         http.StatusOK,
			}
			defer gw.close()

			next.ServeHTTP(gw, r)
		})
	}, nil
}

// acceptsGzip reports whether Accept-Encoding allows gzip with a non-zero
// quality, directly or through "*".
func acceptsGzip(r *http.Request) bool {
	gzipQ, anyQ := -1.0, -1.0

	for _, v := range r.Header.Values("Accept-Encoding") {
		for part := range strings.SplitSeq(v, ",") {
			name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
			q := 1.0
			if key, val, ok := strings.Cut(strings.TrimSpace(params), "="); ok && strings.TrimSpace(key) == "q" {
				parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
				if err != nil {
					parsed = 0
				}
				q = parsed
			}

			switch strings.ToLower(strings.TrimSpace(name)) {
			case "gzip", "x-gzip":
				gzipQ = q
			case "*":
				anyQ = q
			}
		}
	}

	if gzipQ < 0 {
		gzipQ = anyQ
	}
	return gzipQ > 0
}

func isCompressedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	for _, prefix := range compressedContentTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// gzipResponseWriter buffers up to minSize bytes before deciding whether
// to compress.
type gzipResponseWriter struct {
	http.ResponseWriter
	pool    *sync.Pool
	minSize int

	gz          *gzip.Writer
	buf         []byte
	status      int
	wroteHeader bool
	decided     bool
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	if g.wroteHeader {
		return
	}
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		g.ResponseWriter.WriteHeader(code)
		return
	}
	g.status = code
	g.wroteHeader = true
	if code == http.StatusNoContent || code == http.StatusNotModified || code == http.StatusSwitchingProtocols {
		g.decide(false)
	}
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	if g.decided {
		if g.gz != nil {
			return g.gz.Write(b)
		}
		return g.ResponseWriter.Write(b)
	}

	g.buf = append(g.buf, b...)
	if len(g.buf) >= g.minSize {
		if err := g.flushBuffer(true); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// decide sends the header, compressing when compress is true and the
// response allows it.
func (g *gzipResponseWriter) decide(compress bool) {
	g.decided = true
	h := g.Header()

	if compress && (h.Get("Content-Encoding") != "" ||
		isCompressedContentType(h.Get("Content-Type")) ||
		httpguts.HeaderValuesContainsToken(h["Cache-Control"], "no-transform")) {
		compress = false
	}

	if compress {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		g.gz = g.pool.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
	}
	g.ResponseWriter.WriteHeader(g.status)
}

func (g *gzipResponseWriter) flushBuffer(compress bool) error {
	g.decide(compress)
	buf := g.buf
	g.buf = nil
	if len(buf) == 0 {
		return nil
	}
	var err error
	if g.gz != nil {
		_, err = g.gz.Write(buf)
	} else {
		_, err = g.ResponseWriter.Write(buf)
	}
	return err
}

// close sends a body smaller than minSize uncompressed and finishes the
// gzip stream.
func (g *gzipResponseWriter) close() {
	if !g.decided {
		if !g.wroteHeader && len(g.buf) == 0 {
			return
		}
		_ = g.flushBuffer(false)
	}
	if g.gz != nil {
		_ = g.gz.Close()
		g.pool.Put(g.gz)
		g.gz = nil
	}
}

// Flush implements http.Flusher. A body flushed before reaching the
// threshold is sent uncompressed.
func (g *gzipResponseWriter) Flush() {
	if !g.decided {
		if !g.wroteHeader {
			g.WriteHeader(http.StatusOK)
		}
		_ = g.flushBuffer(false)
	}
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	_ = http.NewResponseController(g.ResponseWriter).Flush()
}

// Unwrap returns the underlying ResponseWriter.
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}
