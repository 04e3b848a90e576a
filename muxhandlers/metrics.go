package muxhandlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitalvas/lilya/mux"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Registerer receives the collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Namespace and Subsystem prefix metric names.
	Namespace string
	Subsystem string

	// Buckets for the request duration histogram. Defaults to
	// prometheus.DefBuckets.
	Buckets []float64

	// Router resolves route templates when the middleware runs outside
	// the router.
	Router *mux.Router
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// register adds c to reg, reusing a collector registered earlier with the
// same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func newHTTPMetrics(cfg MetricsConfig) (*httpMetrics, error) {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds by method and route.",
		Buckets:   buckets,
	}, []string{"method", "route"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests being served.",
	}))
	if err != nil {
		return nil, err
	}

	return &httpMetrics{requests: requests, duration: duration, inFlight: inFlight}, nil
}

// MetricsMiddleware returns a middleware recording request count, latency
// and in-flight requests, labelled by route template so that path
// parameters do not explode label cardinality.
func MetricsMiddleware(cfg MetricsConfig) (mux.EndpointMiddleware, error) {
	m, err := newHTTPMetrics(cfg)
	if err != nil {
		return nil, err
	}

	return func(next mux.Endpoint) mux.Endpoint {
		return func(w http.ResponseWriter, r *http.Request) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			start := time.Now()
			rw := mux.NewResponseWriter(w)
			err := next(rw, r)

			route := routeTemplate(cfg.Router, r)
			m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			m.requests.WithLabelValues(r.Method, route, strconv.Itoa(responseStatus(rw, err))).Inc()
			return err
		}
	}, nil
}

// MetricsHandler serves the metrics gathered by g in the Prometheus
// exposition format. A nil g uses prometheus.DefaultGatherer.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
