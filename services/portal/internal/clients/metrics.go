package clients

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var idSegment = regexp.MustCompile(`/\d+(/|$)`)

// Metrics records backend call latency by endpoint.
type Metrics struct {
	duration *prometheus.HistogramVec
}

// NewMetrics registers backend call metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Latency of billing backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint", "status"}),
	}
	reg.MustRegister(m.duration)
	return m
}

func (m *Metrics) observe(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(method, endpointLabel(path), strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// endpointLabel collapses numeric ids to keep label cardinality bounded.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return idSegment.ReplaceAllString(path, "/{id}$1")
}
