package muxhandlers

import (
	"errors"
	"net/http"

	"github.com/vitalvas/lilya/mux"
)

// ErrInvalidMaxSize is returned when the body limit is not greater than
// zero.
var ErrInvalidMaxSize = errors.New("body limit: max size must be greater than zero")

// BodyLimitMiddleware returns a middleware limiting request bodies to
// maxBytes. A declared Content-Length above the limit is rejected before
// the handler runs; reading past the limit fails with *http.MaxBytesError,
// which is raised as 413 Content Too Large.
func BodyLimitMiddleware(maxBytes int64) (mux.EndpointMiddleware, error) {
	if maxBytes <= 0 {
		return nil, ErrInvalidMaxSize
	}

	return func(next mux.Endpoint) mux.Endpoint {
		return func(w http.ResponseWriter, r *http.Request) error {
			if r.ContentLength > maxBytes {
				return mux.NewHTTPError(http.StatusRequestEntityTooLarge, "")
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			err := next(w, r)
			var tooLarge *http.MaxBytesError
			if err != nil && errors.As(err, &tooLarge) {
				return mux.NewHTTPError(http.StatusRequestEntityTooLarge, "").Wrap(err)
			}
			return err
		}
	}, nil
}
