package channel

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/modbus-bridge/errors"
)

// Metric label values for request outcomes and connect attempts.
const (
	statusOK      = "ok"
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics holds the collectors shared by every channel given the same instance.
type Metrics struct {
	requests   *prometheus.CounterVec
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
	connects   *prometheus.CounterVec
}

// NewMetrics creates the channel collectors and registers them with reg.
// It panics if they are already registered there.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbus_bridge_requests_total",
				Help: "Total number of requests completed, by outcome.",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modbus_bridge_request_duration_seconds",
				Help:    "Time from dequeue to completion of a request, in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modbus_bridge_queue_depth",
				Help: "Number of requests waiting in channel queues.",
			},
		),
		connects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbus_bridge_connect_attempts_total",
				Help: "Total number of connection attempts, by result.",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.requests, m.duration, m.queueDepth, m.connects)

	m.requests.WithLabelValues(statusOK)
	m.connects.WithLabelValues(resultSuccess)
	m.connects.WithLabelValues(resultFailure)

	return m
}

func (m *Metrics) observe(err error, seconds float64) {
	if m == nil {
		return
	}
	status := statusOK
	if err != nil {
		status = string(errors.KindInternal)
		if kind, ok := errors.KindOf(err); ok {
			status = string(kind)
		}
	}
	m.requests.WithLabelValues(status).Inc()
	m.duration.Observe(seconds)
}

func (m *Metrics) queued(delta float64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(delta)
}

func (m *Metrics) connect(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.connects.WithLabelValues(resultFailure).Inc()
		return
	}
	m.connects.WithLabelValues(resultSuccess).Inc()
}
