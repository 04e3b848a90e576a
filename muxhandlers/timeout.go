package muxhandlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vitalvas/lilya/mux"
)

// ErrInvalidTimeout is returned when the timeout is not greater than zero.
var ErrInvalidTimeout = errors.New("timeout: duration must be greater than zero")

// TimeoutMiddleware returns a middleware bounding the request context by d.
// An inner error caused by the deadline is raised as 503 Service
// Unavailable; handlers must observe r.Context() to stop early.
func TimeoutMiddleware(d time.Duration) (mux.EndpointMiddleware, error) {
	if d <= 0 {
		return nil, ErrInvalidTimeout
	}

	return func(next mux.Endpoint) mux.Endpoint {
		return func(w http.ResponseWriter, r *http.Request) error {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			err := next(w, r.WithContext(ctx))
			if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return mux.NewHTTPError(http.StatusServiceUnavailable, "").Wrap(err)
			}
			return err
		}
	}, nil
}
