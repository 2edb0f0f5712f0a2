package apiclient

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records client side request and cache activity.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	cache    *prometheus.CounterVec
}

// NewMetrics registers the client collectors with reg. A nil reg yields
// unregistered collectors, which is handy for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dams_client_requests_total",
			Help: "Requests sent to the appointment API, by resource, method and status code.",
		}, []string{"resource", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dams_client_request_duration_seconds",
			Help:    "Latency of requests sent to the appointment API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource", "method"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dams_client_cache_lookups_total",
			Help: "Query cache lookups, by tag and result.",
		}, []string{"tag", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.cache)
	}
	return m
}

func (m *Metrics) observeRequest(resource, method string, statusCode int, took time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	m.requests.WithLabelValues(resource, method, code).Inc()
	m.duration.WithLabelValues(resource, method).Observe(took.Seconds())
}

func (m *Metrics) observeCache(tag Tag, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(string(tag), result).Inc()
}
