package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics mirrors the shared counters for scraping. A nil *metrics is valid
// and records nothing.
type metrics struct {
	registry   *prometheus.Registry
	received   *prometheus.CounterVec
	active     *prometheus.GaugeVec
	throughput *prometheus.GaugeVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gospeed",
			Name:      "received_bytes_total",
			Help:      "Bytes received by the server, per protocol.",
		}, []string{"proto"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gospeed",
			Name:      "connections_active",
			Help:      "Connections currently served, per protocol.",
		}, []string{"proto"}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gospeed",
			Name:      "throughput_mbps",
			Help:      "Throughput of the last report interval in megabits per second.",
		}, []string{"proto"}),
	}

	m.registry.MustRegister(m.received, m.active, m.throughput)

	return m
}

func (m *metrics) connOpened(p protocol) {
	if m == nil {
		return
	}
	m.active.WithLabelValues(p.String()).Inc()
}

func (m *metrics) connClosed(p protocol) {
	if m == nil {
		return
	}
	m.active.WithLabelValues(p.String()).Dec()
}

// receivedCounter returns the counter a worker adds to, or nil.
func (m *metrics) receivedCounter(p protocol) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.received.WithLabelValues(p.String())
}

func (m *metrics) observe(t throughput) {
	if m == nil {
		return
	}
	m.throughput.WithLabelValues(protoLocal.String()).Set(float64(t.Local))
	m.throughput.WithLabelValues(protoIPv4.String()).Set(float64(t.IPv4))
	m.throughput.WithLabelValues(protoIPv6.String()).Set(float64(t.IPv6))
	m.throughput.WithLabelValues("total").Set(float64(t.Total))
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler())

	return http.ListenAndServe(addr, mux)
}

func appendPortIfMissing(host, port string) string {
LOOP:
	for i := len(host) - 1; i >= 0; i-- {
		c := host[i]
		switch c {
		case ']':
			break LOOP
		case ':':
			return host
		}
	}

	return host + port
}
