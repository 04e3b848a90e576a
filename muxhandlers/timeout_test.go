package muxhandlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/lilya/mux"
)

func TestTimeoutMiddleware(t *testing.T) {
	_, err := TimeoutMiddleware(0)
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	mw, err := TimeoutMiddleware(20 * time.Millisecond)
	require.NoError(t, err)

	r := mux.NewRouter()
	r.Use(mw)
	r.HandleFunc("/slow", func(_ http.ResponseWriter, req *http.Request) error {
		select {
		case <-req.Context().Done():
			return req.Context().Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	r.HandleFunc("/fast", textEndpoint("fast"))
	r.HandleFunc("/other", func(http.ResponseWriter, *http.Request) error {
		return mux.NewHTTPError(http.StatusTeapot, "")
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		w := do(r, get("/slow"))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("fast handler", func(t *testing.T) {
		w := do(r, get("/fast"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "fast", w.Body.String())
	})

	t.Run("other errors pass through", func(t *testing.T) {
		assert.Equal(t, http.StatusTeapot, do(r, get("/other")).Code)
	})

	t.Run("cause is kept", func(t *testing.T) {
		err := mw.Wrap(func(_ http.ResponseWriter, req *http.Request) error {
			<-req.Context().Done()
			return req.Context().Err()
		})(nil, get("/"))

		var httpErr *mux.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusServiceUnavailable, httpErr.Code)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}
