package wcpms

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK        = "ok"
	outcomeTransport = "transport_error"
	outcomeHTTP      = "http_error"
	outcomeDecode    = "decode_error"
)

// Metrics counts client requests per route and outcome.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wcpms_client_requests_total",
			Help: "Requests issued to the WCPMS service by route, method and outcome.",
		}, []string{"route", "method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wcpms_client_request_duration_seconds",
			Help:    "Time from sending a WCPMS request to decoding its response.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"route", "method"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register metrics: %w", err)
			}
		}
	}
	return m, nil
}

func (m *Metrics) observe(route, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
