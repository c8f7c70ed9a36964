package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outgoing API call metrics.
var (
	apiInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_api_in_flight_requests",
		Help: "In-flight outgoing API requests.",
	})

	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_api_requests_total",
			Help: "Total number of outgoing API requests.",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_api_request_duration_seconds",
			Help:    "Outgoing API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(apiInFlight, apiRequestsTotal, apiRequestDuration)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// InstrumentTransport wraps a RoundTripper so every outgoing request is
// counted and timed. A transport error is recorded with status "error".
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		apiInFlight.Inc()
		start := time.Now()

		resp, err := next.RoundTrip(r)

		duration := time.Since(start).Seconds()
		status := "error"
		if err == nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		apiRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		apiRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		apiInFlight.Dec()

		return resp, err
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
